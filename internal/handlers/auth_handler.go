package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/adhikramm/CertWallet/internal/services"
	"github.com/adhikramm/CertWallet/internal/store"
)

var authService *services.AuthService

// InitAuthHandler wires the auth service into the auth routes.
func InitAuthHandler(svc *services.AuthService) {
	authService = svc
}

func RegisterHandler(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if request.Email == "" || request.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password are required"})
	}

	user, err := authService.RegisterUser(c.Context(), request.Email, request.Name, request.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email already in use"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(fiber.Map{"message": "User registered successfully", "user": user})
}

func LoginHandler(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token, role, err := authService.LoginUser(c.Context(), request.Email, request.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"role":  role,
	})
}

// ProfileHandler returns the authenticated user's account.
func ProfileHandler(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	user, err := authService.GetProfile(c.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service unavailable, please try again"})
	}

	return c.JSON(user)
}
