package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/planfold/planfold/internal/api/authenticator"
	"github.com/planfold/planfold/internal/perrors"
	"github.com/planfold/planfold/internal/services"
	user2 "github.com/planfold/planfold/internal/services/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        *user2.User `json:"user"`
	AccessToken string      `json:"access_token,omitempty"`
}

func RegisterAuthRoutes(r *router.Router, svc *services.Services, auth *authenticator.Authenticator) {
	// Whether the server enforces authentication
	r.GET("/api/auth/enabled", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		writeOK(ctx, stdCtx, "Auth status", map[string]bool{"enabled": auth.AuthEnabled()})
	})

	// Register a new user
	r.POST("/api/auth/register", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body user2.RegisterRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Email == "" || body.Password == "" || body.Name == "" {
			writeError(ctx, stdCtx, "Name, email and password are required", perrors.NewErrInvalidRequest("Name, email and password are required", errors.New("missing required fields")))
			return
		}

		created, err := svc.User.Register(stdCtx, &body)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrEmailTaken):
				writeError(ctx, stdCtx, "Email is already registered", perrors.New(perrors.ErrCodeConflict, "Email is already registered", err))
			default:
				writeError(ctx, stdCtx, "Failed to register user", perrors.NewErrInternalServerError("Failed to register user", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "User registered successfully", created)
	})

	// Login with email and password
	r.POST("/api/auth/login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body loginRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		u, err := svc.User.Authenticate(stdCtx, body.Email, body.Password)
		if err != nil {
			writeError(ctx, stdCtx, "Invalid email or password", perrors.New(perrors.ErrCodeUnauthorized, "Invalid email or password", err))
			return
		}

		resp := loginResponse{User: u}
		if auth.AuthEnabled() {
			token, err := auth.Mint(u.ID, u.Email)
			if err != nil {
				writeError(ctx, stdCtx, "Failed to issue token", perrors.NewErrInternalServerError("Failed to issue token", err))
				return
			}
			resp.AccessToken = token
		}

		writeOK(ctx, stdCtx, "Logged in successfully", resp)
	})

	// Current user
	r.GET("/api/auth/me", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		userID, err := currentUserID(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
			return
		}

		u, err := svc.User.GetByID(stdCtx, userID)
		if err != nil {
			writeError(ctx, stdCtx, "User not found", perrors.NewErrNotFound("User not found", err))
			return
		}

		writeOK(ctx, stdCtx, "User retrieved successfully", u)
	})
}
