package seed

import (
	"context"
	"errors"
	"log"

	"golang.org/x/crypto/bcrypt"

	"clinicpos/m/domain"
)

type UserStore interface {
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
}

// EnsureAdmin creates the administrator account if email is set and unused.
func EnsureAdmin(ctx context.Context, st UserStore, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := st.UserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := st.CreateUser(ctx, domain.User{Name: "Administrator", Email: email, Password: string(hashed), Role: domain.RoleAdmin}); err != nil {
		return err
	}
	log.Printf("created admin account %s", email)
	return nil
}
