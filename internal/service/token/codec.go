package token

import (
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/covalidate/licensesrv/internal/apperrors"
	"github.com/covalidate/licensesrv/internal/models"
)

// Token is a compact JWE in direct encryption mode: the symmetric key is used
// as the content encryption key itself, no per-message key wrapping
const contentEncryption = jose.A256GCM

// EncodeClaims serializes claims into an encrypted compact token
// Fresh random IV per call, the authentication tag covers header and payload both
func EncodeClaims(claims models.Claims, key []byte) (string, error) {
	encrypter, err := jose.NewEncrypter(
		contentEncryption,
		jose.Recipient{Algorithm: jose.DIRECT, Key: key},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("error while initializing encrypter. Err: %w", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("error while marshaling claims. Err: %w", err)
	}

	object, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("error while encrypting claims. Err: %w", err)
	}

	serialized, err := object.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("error while serializing token. Err: %w", err)
	}

	return serialized, nil
}

// DecodeClaims parses and decrypts a compact token back into claims
// Returns apperrors.ErrTokenMalformed if the compact structure is invalid,
// apperrors.ErrTokenAuthentication if decryption or tag verification fails,
// apperrors.ErrTokenDecode if the decrypted payload is not well formed claims
// Error values carry no key material and no plaintext
func DecodeClaims(tokenString string, key []byte) (models.Claims, error) {
	var claims models.Claims

	object, err := jose.ParseEncrypted(tokenString,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{contentEncryption},
	)
	if err != nil {
		return claims, fmt.Errorf("parse error: %w", apperrors.ErrTokenMalformed)
	}

	payload, err := object.Decrypt(key)
	if err != nil {
		return claims, fmt.Errorf("decrypt error: %w", apperrors.ErrTokenAuthentication)
	}

	if err := json.Unmarshal(payload, &claims); err != nil {
		return claims, fmt.Errorf("payload error: %w", apperrors.ErrTokenDecode)
	}

	return claims, nil
}
