package service

import "time"

type LoginInput struct {
	Email             string
	Password          string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

type LoginMFAInput struct {
	MFAToken          string
	Code              string
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
}

type LoginResult struct {
	SessionToken      string
	SessionID         string
	ExpiresAt         time.Time
	MFARequired       bool
	MFAToken          string
	MFATokenExpiresIn int64
}
