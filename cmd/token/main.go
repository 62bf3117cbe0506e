/*
main.go - Operator token minting

PURPOSE:
  Prints a bearer token for an admin, agent or taxpayer, signed with the
  same TAX_JWT_SECRET the server uses. Operators hand agent tokens to field
  collectors; accounts live outside this service.

EXAMPLES:
  ./token -sub=admin-1 -role=admin
  TAX_JWT_EXPIRY=720h ./token -sub=agent-17 -role=agent
*/
package main

import (
	"flag"
	"fmt"

	"github.com/hassan3xl/taxation-backend/auth"
	"github.com/hassan3xl/taxation-backend/config"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	sub := flag.String("sub", "", "actor id (required)")
	role := flag.String("role", string(generic.RoleAgent), "admin | agent | taxpayer")
	expiry := flag.Duration("expiry", cfg.JWTExpiry, "token lifetime")
	flag.Parse()

	if cfg.UsesDevSecret() {
		logrus.Warn("TAX_JWT_SECRET is not set, token is signed with the development secret")
	}

	tokens, err := auth.NewService(cfg.JWTSecret, *expiry)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize auth")
	}
	token, err := tokens.GenerateToken(generic.Actor{ID: *sub, Role: generic.Role(*role)})
	if err != nil {
		logrus.WithError(err).Fatal("failed to generate token")
	}
	fmt.Println(token)
}
