package jsonrpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/dgrijalva/jwt-go"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/spruceid/siwe-go"
	"go.uber.org/zap"
)

type Claims struct {
	UserWallet string `json:"userWallet"`
	jwt.StandardClaims
}

func (r *rpc) nonce() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		nonce := siwe.GenerateNonce()
		now := time.Now()
		r.mu.Lock()
		for n, issued := range r.nonces {
			if now.Sub(issued) > r.opts.NonceTTL {
				delete(r.nonces, n)
			}
		}
		r.nonces[nonce] = now
		r.mu.Unlock()

		ctx.JSON(http.StatusOK, gin.H{
			"nonce": nonce,
		})
	}
}

func (r *rpc) verify() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		req := types.VerifySiwe{}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		wallet, err := r.verifySiwe(req)
		if err != nil {
			r.logger.Debug("login rejected", zap.Error(err))
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		claims := &Claims{
			UserWallet: wallet.Hex(),
			StandardClaims: jwt.StandardClaims{
				ExpiresAt: time.Now().Add(time.Hour * 24).Unix(),
				IssuedAt:  time.Now().Unix(),
			},
		}
		tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(r.opts.JWTSecret))
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		r.logger.Info("logged in", zap.String("wallet", wallet.Hex()))
		ctx.JSON(http.StatusOK, gin.H{"token": tokenString})
	}
}

func (r *rpc) verifySiwe(req types.VerifySiwe) (common.Address, error) {
	parsedMessage, err := siwe.ParseMessage(req.Message)
	if err != nil {
		return common.Address{}, fmt.Errorf("error parsing message: %w", err)
	}

	valid, err := parsedMessage.ValidNow()
	if err != nil {
		return common.Address{}, fmt.Errorf("error validating message: %w", err)
	}
	if !valid {
		return common.Address{}, errors.New("message expired")
	}
	if r.opts.Domain != "" && parsedMessage.GetDomain() != r.opts.Domain {
		return common.Address{}, fmt.Errorf("unexpected domain %v", parsedMessage.GetDomain())
	}

	// nonces are single use
	r.mu.Lock()
	issued, ok := r.nonces[parsedMessage.GetNonce()]
	delete(r.nonces, parsedMessage.GetNonce())
	r.mu.Unlock()
	if !ok || time.Since(issued) > r.opts.NonceTTL {
		return common.Address{}, errors.New("unknown nonce")
	}

	addr, err := verifySignature(parsedMessage.String(), req.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("error verifying message: %w", err)
	}
	if addr != parsedMessage.GetAddress() {
		return common.Address{}, errors.New("signer does not match the message address")
	}
	return addr, nil
}

func verifySignature(msg string, signature string) (common.Address, error) {
	sigHash := accounts.TextHash([]byte(msg))
	sigBytes, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sigBytes) != crypto.SignatureLength {
		return common.Address{}, errors.New("invalid signature length")
	}
	if sigBytes[64] != 27 && sigBytes[64] != 28 {
		return common.Address{}, errors.New("invalid signature recovery byte")
	}
	sigBytes[64] -= 27
	pubkey, err := crypto.SigToPub(sigHash, sigBytes)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

func (r *rpc) authenticate(ctx *gin.Context) {
	tokenString := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	if tokenString == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
		return
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return []byte(r.opts.JWTSecret), nil
	})
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if !token.Valid || !common.IsHexAddress(claims.UserWallet) {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
		return
	}
	ctx.Set("userWallet", claims.UserWallet)
	ctx.Next()
}
