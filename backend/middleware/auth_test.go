// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	body := header + "." + base64.RawURLEncoding.EncodeToString(payload)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(body))
	return body + "." + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func validClaims() Claims {
	return Claims{
		UserID:    "u1",
		Email:     "ana@example.com",
		Name:      "Ana",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		IssuedAt:  time.Now().Unix(),
		Issuer:    "chatdocu",
	}
}

func doAuth(token string) (*httptest.ResponseRecorder, string) {
	var gotUID string
	handler := NewAuthMiddleware(testSecret, "chatdocu")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID, _ = GetUserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/chat/chats", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotUID
}

func TestValidTokenPassesThrough(t *testing.T) {
	rec, uid := doAuth(signToken(t, testSecret, validClaims()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", uid)
}

func TestMissingHeaderRejected(t *testing.T) {
	rec, _ := doAuth("")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBadSignatureRejected(t *testing.T) {
	rec, _ := doAuth(signToken(t, "wrong-secret", validClaims()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	rec, _ := doAuth(signToken(t, testSecret, claims))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongIssuerRejected(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "someone-else"
	rec, _ := doAuth(signToken(t, testSecret, claims))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimsAvailableToHandlers(t *testing.T) {
	var got *Claims
	handler := NewAuthMiddleware(testSecret, "chatdocu")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetClaims(r)
	}))

	req := httptest.NewRequest("GET", "/api/chat/chats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "ana@example.com", got.Email)
}
