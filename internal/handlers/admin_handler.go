package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/adhikramm/CertWallet/internal/store"
)

var (
	adminUserStore  store.UserStore
	adminShareStore store.ShareStore
)

// InitAdminHandler wires the stores used by the admin routes.
func InitAdminHandler(users store.UserStore, shares store.ShareStore) {
	adminUserStore = users
	adminShareStore = shares
}

// ListUsers returns all registered accounts.
func ListUsers(c *fiber.Ctx) error {
	users, err := adminUserStore.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch users"})
	}
	return c.JSON(users)
}

// ListUserShares returns all shares created by a specific user.
func ListUserShares(c *fiber.Ctx) error {
	userID := c.Params("userid")

	if _, err := adminUserStore.FindByID(c.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}

	shares, err := adminShareStore.FindByOwner(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch shares"})
	}
	return c.JSON(shares)
}

// GetUserByID returns one account's details.
func GetUserByID(c *fiber.Ctx) error {
	userID := c.Params("userid")

	user, err := adminUserStore.FindByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}
	return c.JSON(user)
}
