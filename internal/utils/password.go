package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Paramètres Argon2id : ~15-20ms par vérification
const (
	Argon2Time    = 1
	Argon2Memory  = 32 * 1024
	Argon2Threads = 4
	Argon2KeyLen  = 32
	Argon2SaltLen = 16

	MinPasswordLength = 8
)

var (
	ErrInvalidHash       = errors.New("hash invalide")
	ErrPasswordMismatch  = errors.New("les deux mots de passe ne correspondent pas")
	ErrPasswordTooShort  = fmt.Errorf("le mot de passe doit contenir au moins %d caractères", MinPasswordLength)
	ErrPasswordTooCommon = errors.New("ce mot de passe est trop courant")
)

var commonPasswords = map[string]bool{
	"password": true, "12345678": true, "123456789": true, "azertyuiop": true,
	"motdepasse": true, "qwertyuiop": true, "11111111": true, "iloveyou": true,
}

// CheckNewPassword valide la saisie password1/password2 d'une inscription
func CheckNewPassword(password1, password2 string) error {
	if password1 != password2 {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password1) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if commonPasswords[strings.ToLower(password1)] {
		return ErrPasswordTooCommon
	}
	return nil
}

// HashPassword hash un mot de passe avec Argon2id
func HashPassword(password string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	// Format: $argon2id$v=19$m=32768,t=1,p=4$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword vérifie si un mot de passe correspond au hash
func VerifyPassword(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidHash
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: version %d", ErrInvalidHash, version)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidHash
	}

	otherHash := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(hash)))

	// comparaison en temps constant
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}
