package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/api/dto"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/service"
)

// TicketsHandler exposes the ticket lifecycle.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	payload, err := req.Payload()
	if err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), service.TicketCreateInput{
		CreatorID: req.CreatorID,
		Payload:   payload,
		Selector:  req.ToSelector(),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id. The result is a list with zero or one entry.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	tickets, err := h.service.Find(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// ApproveTicket POST /tickets/:id/approve.
func (h *TicketsHandler) ApproveTicket(c *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Approve(c.UserContext(), c.Params("id"), req.ApproverID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// RejectTicket POST /tickets/:id/reject.
func (h *TicketsHandler) RejectTicket(c *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Reject(c.UserContext(), c.Params("id"), req.ApproverID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	deleted, err := h.service.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketQuery, error) {
	query := service.TicketQuery{TicketID: c.Query("ticket_id")}
	var err error
	if query.CreatorID, err = queryInt64(c, "creator_id"); err != nil {
		return query, err
	}
	if status := c.Query("status"); status != "" {
		s := domain.TicketStatus(status)
		query.Status = &s
	}
	if action := c.Query("action"); action != "" {
		a := domain.TicketAction(action)
		query.Action = &a
	}
	if query.CreatedFrom, err = queryMillis(c, "created_from"); err != nil {
		return query, err
	}
	if query.CreatedTo, err = queryMillis(c, "created_to"); err != nil {
		return query, err
	}
	if query.StatusChangedFrom, err = queryMillis(c, "status_changed_from"); err != nil {
		return query, err
	}
	if query.StatusChangedTo, err = queryMillis(c, "status_changed_to"); err != nil {
		return query, err
	}
	query.Limit, err = queryLimit(c)
	return query, err
}
