package rest

import (
	"context"

	"github.com/google/uuid"
)

type ctxKeyUserID struct{}
type ctxKeyName struct{}
type ctxKeyEmail struct{}

type AuthContext struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

func withAuth(ctx context.Context, a AuthContext) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID{}, a.UserID)
	ctx = context.WithValue(ctx, ctxKeyName{}, a.Name)
	ctx = context.WithValue(ctx, ctxKeyEmail{}, a.Email)
	return ctx
}

func GetAuth(ctx context.Context) (AuthContext, bool) {
	uid, ok := ctx.Value(ctxKeyUserID{}).(uuid.UUID)
	if !ok {
		return AuthContext{}, false
	}
	name, _ := ctx.Value(ctxKeyName{}).(string)
	email, _ := ctx.Value(ctxKeyEmail{}).(string)

	return AuthContext{UserID: uid, Name: name, Email: email}, true
}
