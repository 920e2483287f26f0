package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/linktum-io/linktum/app/middleware"
	businessflow "github.com/linktum-io/linktum/business_flow"
)

// RedirectHandlerInterface defines the contract for public short link resolution
type RedirectHandlerInterface interface {
	Visit(c fiber.Ctx) error
}

type RedirectHandler struct {
	linkFlow businessflow.LinkFlow
}

func NewRedirectHandler(linkFlow businessflow.LinkFlow) RedirectHandlerInterface {
	return &RedirectHandler{linkFlow: linkFlow}
}

// Visit resolves a short code and redirects to the chat URL
func (h *RedirectHandler) Visit(c fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).SendString("invalid link")
	}

	target, err := h.linkFlow.Visit(createRequestContext(c), code, c.IP(), c.Get("User-Agent"), c.Get("Referer"))
	if err != nil {
		if businessflow.IsLinkNotFound(err) {
			return c.Status(fiber.StatusNotFound).SendString("not found")
		}
		log.Println("Visit link failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}

	middleware.RecordLinkVisit()
	c.Redirect().Status(fiber.StatusFound).To(target)
	return nil
}
