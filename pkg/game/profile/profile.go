package profile

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type UserType string

const (
	MICROSOFT UserType = "msa"
	MOJANG    UserType = "mojang"
	LEGACY    UserType = "legacy"
)

// Credentials is the opaque identity handed to the game. It is a value:
// callers build it once and pass it down explicitly.
type Credentials struct {
	Username    string   `json:"username"`
	UUID        string   `json:"uuid"`
	AccessToken string   `json:"accessToken"`
	UserType    UserType `json:"userType"`
}

func NewCredentials(username, id, accessToken string, userType UserType) (Credentials, error) {
	if strings.TrimSpace(username) == "" {
		return Credentials{}, fmt.Errorf("username is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Credentials{}, fmt.Errorf("invalid uuid %q: %w", id, err)
	}
	if userType == "" {
		userType = MOJANG
	}
	return Credentials{
		Username:    username,
		UUID:        parsed.String(),
		AccessToken: accessToken,
		UserType:    userType,
	}, nil
}

// Offline builds credentials for play without an account. The UUID is the
// name-based (version 3) UUID of "OfflinePlayer:<username>", so the same
// name always maps to the same identity.
func Offline(username string) (Credentials, error) {
	if strings.TrimSpace(username) == "" {
		return Credentials{}, fmt.Errorf("username is required")
	}
	return Credentials{
		Username:    username,
		UUID:        OfflineUUID(username).String(),
		AccessToken: "0",
		UserType:    LEGACY,
	}, nil
}

func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = (sum[6] & 0x0f) | 0x30 // version 3
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant
	id, _ := uuid.FromBytes(sum[:])
	return id
}

type Memory struct {
	Xmx int `json:"xmx"` // The maximum memory to use in GB
	Xms int `json:"xms"` // The minimum memory to use in GB
}

func DefaultMemory() Memory {
	return Memory{Xmx: 4, Xms: 2}
}

func (m Memory) Validate() error {
	if m.Xmx < 0 || m.Xms < 0 {
		return fmt.Errorf("memory sizes must not be negative")
	}
	if m.Xmx > 0 && m.Xms > m.Xmx {
		return fmt.Errorf("xms (%dG) exceeds xmx (%dG)", m.Xms, m.Xmx)
	}
	return nil
}

// ToArgs returns the heap flags; a zero size is left to the JVM default.
func (m Memory) ToArgs() []string {
	var args []string
	if m.Xmx > 0 {
		args = append(args, "-Xmx"+strconv.Itoa(m.Xmx)+"G")
	}
	if m.Xms > 0 {
		args = append(args, "-Xms"+strconv.Itoa(m.Xms)+"G")
	}
	return args
}
