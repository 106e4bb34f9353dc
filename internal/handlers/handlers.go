// Path: internal/handlers/handlers.go
package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"unibank/internal/models"
	"unibank/internal/services"
)

const claimsKey = "user"

type Handler struct {
	authService        services.AuthService
	accountService     services.AccountService
	transactionService services.TransactionService
	auditService       services.AuditService
	logger             *logrus.Entry
}

func NewHandler(svc *services.Service, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		authService:        svc.Auth,
		accountService:     svc.Accounts,
		transactionService: svc.Transactions,
		auditService:       svc.Audit,
		logger:             logger.WithField("component", "handlers"),
	}
}

// AppError is the handler-level alias of the services error so both layers
// render the same way.
type AppError = services.AppError

func statusOf(err error) (int, string) {
	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		return appErr.Code, appErr.Message
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, "Internal Server Error"
	}
}

// ErrorHandler renders every error as {"detail": "..."}.
func (h *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	code, message := statusOf(err)

	entry := h.logger.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": code,
	}).WithError(err)
	if code >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	if code == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	}
	return c.Status(code).JSON(models.Message{Detail: message})
}

func unprocessable(message string, err error) *AppError {
	appErr := &AppError{Code: fiber.StatusUnprocessableEntity, Message: message, Err: err}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Register creates a user and returns its public record.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return unprocessable("Invalid request body", err)
	}

	user, err := h.authService.Register(req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Login exchanges form credentials for a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	if username == "" || password == "" {
		return unprocessable("username and password are required", nil)
	}

	token, err := h.authService.Login(username, password)
	if err != nil {
		return err
	}
	return c.JSON(models.Token{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) AuthMiddleware(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return &AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Not authenticated",
			Details: "Authorization header is empty",
		}
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return &AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Not authenticated",
			Details: "Authorization header is not a bearer token",
		}
	}

	claims, err := h.authService.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return err
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func currentUser(c *fiber.Ctx) (*models.Claims, error) {
	claims, ok := c.Locals(claimsKey).(*models.Claims)
	if !ok {
		return nil, &AppError{
			Code:    fiber.StatusInternalServerError,
			Message: "Failed to retrieve user claims",
			Details: "User claims were not of the expected type",
		}
	}
	return claims, nil
}

// RequireAdmin rejects callers whose role is not admin.
func (h *Handler) RequireAdmin(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	if claims.Role != "admin" {
		return &AppError{Code: fiber.StatusForbidden, Message: "Access denied", Details: claims.Subject}
	}
	return c.Next()
}

func pathID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, unprocessable(name+": Input should be a valid integer", err)
	}
	return uint(id), nil
}

func bodyID(field string, id *int) (uint, error) {
	if id == nil {
		return 0, unprocessable(field+": Field required", nil)
	}
	if *id <= 0 {
		return 0, &AppError{Code: fiber.StatusNotFound, Message: "Account not found"}
	}
	return uint(*id), nil
}

func bodyAmount(a models.Amount) error {
	if !a.Valid {
		return unprocessable("amount: Input should be a valid number", nil)
	}
	return nil
}

func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	accounts, err := h.accountService.ListAccounts(uint(claims.UserID))
	if err != nil {
		return err
	}
	return c.JSON(accounts)
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	account, err := h.accountService.CreateAccount(uint(claims.UserID))
	if err != nil {
		return err
	}
	return c.JSON(account)
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	accountID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.accountService.DeleteAccount(uint(claims.UserID), accountID); err != nil {
		return err
	}
	return c.JSON(models.Message{Detail: "Account deleted successfully"})
}

// Transfer moves funds from the sender named in the query string.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	raw := c.Query("sender_account_id")
	if raw == "" {
		return unprocessable("sender_account_id: Field required", nil)
	}
	senderID := c.QueryInt("sender_account_id", -1)
	if senderID <= 0 {
		return unprocessable("sender_account_id: Input should be a valid integer", nil)
	}

	var req models.TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return unprocessable("Invalid request body", err)
	}
	if err := bodyAmount(req.Amount); err != nil {
		return err
	}
	receiverID, err := bodyID("receiver_account_id", req.ReceiverAccountID)
	if err != nil {
		return err
	}

	tx, err := h.transactionService.Transfer(uint(claims.UserID), uint(senderID), receiverID, req.Amount.Decimal)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req models.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return unprocessable("Invalid request body", err)
	}
	if err := bodyAmount(req.Amount); err != nil {
		return err
	}
	receiverID, err := bodyID("receiver_account_id", req.ReceiverAccountID)
	if err != nil {
		return err
	}

	tx, err := h.transactionService.Deposit(receiverID, req.Amount.Decimal)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *Handler) Withdraw(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return unprocessable("Invalid request body", err)
	}
	if err := bodyAmount(req.Amount); err != nil {
		return err
	}
	senderID, err := bodyID("sender_account_id", req.SenderAccountID)
	if err != nil {
		return err
	}

	tx, err := h.transactionService.Withdraw(uint(claims.UserID), senderID, req.Amount.Decimal)
	if err != nil {
		return err
	}
	return c.JSON(tx)
}

func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	accountID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	txs, err := h.transactionService.ListTransactions(uint(claims.UserID), accountID)
	if err != nil {
		return err
	}
	return c.JSON(txs)
}

func (h *Handler) AccessLogs(c *fiber.Ctx) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.auditService.ListForUser(uint(claims.UserID))
	if err != nil {
		return err
	}
	return c.JSON(entries)
}

func (h *Handler) AllAccessLogs(c *fiber.Ctx) error {
	entries, err := h.auditService.ListAll()
	if err != nil {
		return err
	}
	return c.JSON(entries)
}
