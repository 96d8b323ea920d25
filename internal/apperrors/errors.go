package apperrors

import (
	"errors"
)

var (
	ErrTokenMalformed      = errors.New("token is not a valid compact JWE")
	ErrTokenAuthentication = errors.New("token authentication failed")
	ErrTokenDecode         = errors.New("token payload is not valid claims")
	ErrTokenExpired        = errors.New("token is expired")
	ErrTokenIssuerInvalid  = errors.New("token issuer is invalid")

	ErrLicenseExists       = errors.New("license key already exists")
	ErrLicenseNotFound     = errors.New("license not found")
	ErrLicenseAlreadyBound = errors.New("license already bound to hardware")
	ErrHardwareMismatch    = errors.New("license bound to different hardware")
	ErrLicenseExpired      = errors.New("license is expired")
)
