//go:build wireinject
// +build wireinject

package main

import (
	"authgate/internal/app"
	"authgate/internal/config"
	"authgate/internal/firebase"
	"authgate/internal/shared"
	"authgate/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		provideLogger,
		provideRepository,
		provideHealthChecker,

		// Token verification
		firebase.NewFirebaseService,
		wire.Bind(new(shared.TokenVerifier), new(*firebase.FirebaseService)),

		// Profiles
		user.NewService,
		wire.Bind(new(user.Service), new(*user.ProvisioningService)),
		user.NewHandler,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
