package handler

import (
	"context"
	"errors"
	"strconv"

	"smartbank/internal/config"
	"smartbank/internal/model"
	"smartbank/internal/service"
	"smartbank/internal/storage"
	"smartbank/pkg/money"
	"smartbank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	userService   *service.UserService
	ledgerService *service.LedgerService
}

func NewHandler(store storage.Store, cfg *config.Config) *Handler {
	return &Handler{
		userService:   service.NewUserService(store, cfg),
		ledgerService: service.NewLedgerService(store, cfg),
	}
}

// ============================================================
// Auth
// ============================================================

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user account.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPassword):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrEmailTaken):
			response.BusinessError(c, response.CodeEmailTaken, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Created(c, user)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a bearer token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
		} else {
			response.ServerError(c, err.Error())
		}
		return
	}

	token, err := h.userService.IssueToken(user)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// ============================================================
// Accounts
// ============================================================

type CreateAccountRequest struct {
	AccountType    string          `json:"account_type" binding:"required"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

// CreateAccount opens an account for the authenticated user.
// POST /api/v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	initialDeposit, err := money.ToMinorUnits(req.InitialDeposit)
	if err != nil {
		response.ParamError(c, "initial_deposit: "+err.Error())
		return
	}

	account, err := h.ledgerService.CreateAccount(c.Request.Context(), currentUser(c).ID, req.AccountType, initialDeposit)
	if err != nil {
		h.ledgerError(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// ListAccounts returns the authenticated user's accounts.
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledgerService.Accounts(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountResponse(account))
	}
	response.Success(c, out)
}

type MoneyRequest struct {
	AccountID int64           `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// Deposit adds money to one of the caller's accounts.
// POST /api/v1/accounts/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.moneyOperation(c, h.ledgerService.Deposit)
}

// Withdraw removes money from one of the caller's accounts.
// POST /api/v1/accounts/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.moneyOperation(c, h.ledgerService.Withdraw)
}

func (h *Handler) moneyOperation(c *gin.Context, op func(ctx context.Context, userID, accountID, amount int64) (*model.Account, error)) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		response.ParamError(c, "amount: "+err.Error())
		return
	}

	account, err := op(c.Request.Context(), currentUser(c).ID, req.AccountID, amount)
	if err != nil {
		h.ledgerError(c, err)
		return
	}

	response.Success(c, toAccountResponse(account))
}

type TransferRequest struct {
	FromAccountID   int64           `json:"from_account_id" binding:"required"`
	ToAccountNumber string          `json:"to_account_number" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
}

// Transfer moves money from the caller's account to any account by number.
// POST /api/v1/accounts/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	amount, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		response.ParamError(c, "amount: "+err.Error())
		return
	}

	account, err := h.ledgerService.Transfer(c.Request.Context(), currentUser(c).ID, req.FromAccountID, req.ToAccountNumber, amount)
	if err != nil {
		h.ledgerError(c, err)
		return
	}

	response.Success(c, toAccountResponse(account))
}

// ListTransactions returns an account's ledger records, newest first.
// GET /api/v1/accounts/:id/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid account id")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	transactions, total, err := h.ledgerService.Transactions(c.Request.Context(), currentUser(c).ID, accountID, page, pageSize)
	if err != nil {
		h.ledgerError(c, err)
		return
	}

	out := make([]transactionResponse, 0, len(transactions))
	for _, trans := range transactions {
		out = append(out, toTransactionResponse(trans))
	}

	response.Success(c, gin.H{
		"list":      out,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Admin
// ============================================================

// ListUsers returns all registered users.
// GET /api/v1/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, users)
}

// GetUser returns one user by id.
// GET /api/v1/admin/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid user id")
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			response.NotFound(c, err.Error())
		} else {
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, user)
}

// ============================================================
// Helpers
// ============================================================

// ledgerError translates the engine's typed errors into transport codes.
func (h *Handler) ledgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidAccountType):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrRecipientNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrLimitExceeded):
		response.BusinessError(c, response.CodeLimitExceeded, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

type accountResponse struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Balance       decimal.Decimal `json:"balance"`
	UserID        int64           `json:"user_id"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		AccountType:   a.AccountType,
		Balance:       money.FromMinorUnits(a.Balance),
		UserID:        a.UserID,
	}
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	AccountID int64           `json:"account_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt string          `json:"created_at"`
}

func toTransactionResponse(t *model.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		Reference: t.Reference,
		AccountID: t.AccountID,
		Type:      t.Type,
		Amount:    money.FromMinorUnits(t.Amount),
		CreatedAt: t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
