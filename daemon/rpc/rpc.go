package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/catalogfi/fusion/daemon/rpc/methods"
	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RPC interface {
	AddCommand(cmd methods.Method)
	HandleJSONRPC(ctx *gin.Context)
	Handler() http.Handler
	Run(ctx context.Context, addr string) error
}

type rpc struct {
	commands   map[string]methods.Method
	coreConfig types.CoreConfig
	opts       Options
	router     *gin.Engine
	logger     *zap.Logger

	mu     sync.Mutex
	nonces map[string]time.Time
}

// Request defines a JSON-RPC 2.0 request object.
type Request struct {
	Version string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response defines a JSON-RPC 2.0 response object.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error defines a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *Error) Error() string {
	return e.Message + ": " + e.Data
}

// Error codes
const (
	ErrorCodeParseError        = -32700
	ErrorMessageParseError     = "Parse error"
	ErrorCodeInvalidRequest    = -32600
	ErrorMessageInvalidRequest = "Invalid Request"
	ErrorCodeMethodNotFound    = -32601
	ErrorMessageMethodNotFound = "Method not found"
	ErrorCodeInvalidParams     = -32602
	ErrorMessageInvalidParams  = "Invalid params"
	ErrorCodeInternalError     = -32603
	ErrorMessageInternalError  = "Internal error"

	// server defined
	ErrorCodeStateError       = -32001
	ErrorMessageStateError    = "Invalid state"
	ErrorCodeUnauthorized     = -32002
	ErrorMessageUnauthorized  = "Unauthorized"
	ErrorCodeArithmeticError  = -32003
	ErrorMessageArithmetic    = "Arithmetic error"
	ErrorCodeResourceError    = -32004
	ErrorMessageResourceError = "Insufficient resources"
	ErrorCodeNotFound         = -32005
	ErrorMessageNotFound      = "Not found"
)

func NewResponse(id interface{}, result json.RawMessage, err *Error) Response {
	return Response{
		Version: "2.0",
		ID:      id,
		Result:  result,
		Error:   err,
	}
}

func NewError(code int, message string, data string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// ErrorFrom classifies a method failure.
func ErrorFrom(err error) *Error {
	switch fault.KindOf(err) {
	case fault.Validation:
		return NewError(ErrorCodeInvalidParams, ErrorMessageInvalidParams, err.Error())
	case fault.State:
		return NewError(ErrorCodeStateError, ErrorMessageStateError, err.Error())
	case fault.Auth:
		return NewError(ErrorCodeUnauthorized, ErrorMessageUnauthorized, err.Error())
	case fault.Arithmetic:
		return NewError(ErrorCodeArithmeticError, ErrorMessageArithmetic, err.Error())
	case fault.Resource:
		return NewError(ErrorCodeResourceError, ErrorMessageResourceError, err.Error())
	case fault.NotFound:
		return NewError(ErrorCodeNotFound, ErrorMessageNotFound, err.Error())
	default:
		return NewError(ErrorCodeInternalError, ErrorMessageInternalError, err.Error())
	}
}

type Options struct {
	JWTSecret string
	// Domain, if set, must match the domain of SIWE messages.
	Domain   string
	NonceTTL time.Duration
}

func DefaultOptions() Options {
	return Options{NonceTTL: 10 * time.Minute}
}

func (opts Options) WithJWTSecret(secret string) Options {
	opts.JWTSecret = secret
	return opts
}

func (opts Options) WithDomain(domain string) Options {
	opts.Domain = domain
	return opts
}

func NewRpcServer(coreConfig types.CoreConfig, opts Options) RPC {
	if opts.JWTSecret == "" {
		panic("RPC jwt secret must be specified")
	}
	if opts.NonceTTL == 0 {
		opts.NonceTTL = DefaultOptions().NonceTTL
	}

	gin.SetMode(gin.ReleaseMode)
	r := &rpc{
		commands:   make(map[string]methods.Method),
		coreConfig: coreConfig,
		opts:       opts,
		router:     gin.New(),
		logger:     coreConfig.Logger.With(zap.String("service", "rpc")),
		nonces:     make(map[string]time.Time),
	}
	for _, method := range methods.All() {
		r.AddCommand(method)
	}

	r.router.Use(gin.Recovery(), cors.Default())
	r.router.GET("/nonce", r.nonce())
	r.router.POST("/verify", r.verify())

	authRoutes := r.router.Group("/")
	authRoutes.Use(r.authenticate)
	authRoutes.POST("/", r.HandleJSONRPC)
	return r
}

func (r *rpc) AddCommand(cmd methods.Method) {
	r.commands[cmd.Name()] = cmd
}

func (r *rpc) HandleJSONRPC(ctx *gin.Context) {
	req := Request{}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, NewResponse(req.ID, nil, NewError(ErrorCodeParseError, ErrorMessageParseError, err.Error())))
		return
	}
	if req.Version != "2.0" {
		ctx.JSON(http.StatusBadRequest, NewResponse(req.ID, nil, NewError(ErrorCodeInvalidRequest, ErrorMessageInvalidRequest, "jsonrpc must be 2.0")))
		return
	}

	cmd, ok := r.commands[req.Method]
	if !ok {
		ctx.JSON(http.StatusNotFound, NewResponse(req.ID, nil, NewError(ErrorCodeMethodNotFound, ErrorMessageMethodNotFound, req.Method)))
		return
	}

	caller := common.HexToAddress(ctx.GetString("userWallet"))
	result, err := cmd.Query(ctx.Request.Context(), &r.coreConfig, caller, req.Params)
	if err != nil {
		r.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("caller", caller.Hex()),
			zap.Error(err))
		rpcErr := ErrorFrom(err)
		status := http.StatusOK
		if rpcErr.Code == ErrorCodeInternalError {
			status = http.StatusInternalServerError
		}
		ctx.JSON(status, NewResponse(req.ID, nil, rpcErr))
		return
	}

	ctx.JSON(http.StatusOK, NewResponse(req.ID, result, nil))
}

func (r *rpc) Handler() http.Handler {
	return r.router
}

// Run serves on addr until ctx is done.
func (r *rpc) Run(ctx context.Context, addr string) error {
	service := &http.Server{
		Addr:    addr,
		Handler: r.router,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("listening", zap.String("addr", addr))
		if err := service.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		return err
	}
	r.logger.Info("stopped")
	return nil
}
