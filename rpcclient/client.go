package rpcclient

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	jsonrpc "github.com/catalogfi/fusion/daemon/rpc"
	"github.com/catalogfi/fusion/daemon/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spruceid/siwe-go"
)

type client struct {
	Protocol  string
	RPCServer string
	Token     string
	http      *http.Client
}

type Client interface {
	// Login signs in with key and keeps the returned token for later calls.
	Login(key *ecdsa.PrivateKey) (string, error)
	SetToken(token string)

	CreateOrder(data types.RequestCreate) (json.RawMessage, error)
	FillOrder(data types.RequestFill) (json.RawMessage, error)
	CancelOrder(data types.RequestCancel) (json.RawMessage, error)
	CancelOrderByResolver(data types.RequestCancelByResolver) (json.RawMessage, error)
	GetOrder(data types.RequestGetOrder) (json.RawMessage, error)
	OrderIdentity(data types.RequestIdentity) (json.RawMessage, error)
	Quote(data types.RequestQuote) (json.RawMessage, error)

	Deposit(data types.RequestDeposit) (json.RawMessage, error)
	Claim(data types.RequestClaim) (json.RawMessage, error)
	Refund(data types.RequestEscrowID) (json.RawMessage, error)
	GetEscrow(data types.RequestEscrowID) (json.RawMessage, error)
	GetSecret(data types.RequestEscrowID) (json.RawMessage, error)
	IsActive(data types.RequestEscrowID) (json.RawMessage, error)
	EscrowCounter() (json.RawMessage, error)

	RegisterResolver(data types.RequestResolver) (json.RawMessage, error)
	DeregisterResolver(data types.RequestResolver) (json.RawMessage, error)
	SetAuthority(data types.RequestAuthority) (json.RawMessage, error)
	Balance(data types.RequestBalance) (json.RawMessage, error)
}

func NewClient(protocol string, rpcServer string, token string) Client {
	return &client{
		Protocol:  protocol,
		RPCServer: rpcServer,
		Token:     token,
		http:      http.DefaultClient,
	}
}

func (c *client) url(path string) string {
	return c.Protocol + "://" + c.RPCServer + path
}

func (c *client) SetToken(token string) {
	c.Token = token
}

func (c *client) Login(key *ecdsa.PrivateKey) (string, error) {
	var nonce struct {
		Nonce string `json:"nonce"`
	}
	if err := c.do(http.MethodGet, "/nonce", nil, &nonce); err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	msg, err := siwe.InitMessage(c.RPCServer, address.Hex(), c.url("/"), nonce.Nonce, map[string]interface{}{
		"chainId":   1,
		"statement": "Sign in to fusion",
	})
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}
	message := msg.String()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27

	body, err := json.Marshal(types.VerifySiwe{Message: message, Signature: hexutil.Encode(sig)})
	if err != nil {
		return "", err
	}
	var verified struct {
		Token string `json:"token"`
	}
	if err := c.do(http.MethodPost, "/verify", body, &verified); err != nil {
		return "", fmt.Errorf("failed to verify: %w", err)
	}
	c.Token = verified.Token
	return verified.Token, nil
}

func (c *client) do(method, path string, body []byte, v interface{}) error {
	httpRequest, err := http.NewRequest(method, c.url(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpResponse, err := c.http.Do(httpRequest)
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	respBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("error reading reply: %v", err)
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return fmt.Errorf("%d %s", httpResponse.StatusCode, respBytes)
	}
	return json.Unmarshal(respBytes, v)
}

// SendPostRequest sends the marshalled JSON-RPC command using HTTP-POST mode
// to the server. It unmarshals the response as a JSON-RPC response and
// returns either the result field or the error field.
func (c *client) SendPostRequest(method string, jsonData []byte) (json.RawMessage, error) {
	payload := jsonrpc.Request{
		Version: "2.0",
		ID:      1,
		Method:  method,
		Params:  json.RawMessage(jsonData),
	}
	marshalledJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	httpRequest, err := http.NewRequest(http.MethodPost, c.url("/"), bytes.NewReader(marshalledJSON))
	if err != nil {
		return nil, err
	}
	httpRequest.Close = true
	httpRequest.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpResponse, err := c.http.Do(httpRequest)
	if err != nil {
		return nil, err
	}

	// Read the raw bytes and close the response.
	respBytes, err := io.ReadAll(httpResponse.Body)
	httpResponse.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading json reply: %v", err)
	}

	// A JSON-RPC error can come with any status, prefer it over the status.
	var resp jsonrpc.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil || resp.Version == "" {
		if len(respBytes) == 0 {
			return nil, fmt.Errorf("%d %s", httpResponse.StatusCode,
				http.StatusText(httpResponse.StatusCode))
		}
		return nil, fmt.Errorf("%d %s", httpResponse.StatusCode, respBytes)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *client) call(method string, data interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := c.SendPostRequest(method, jsonData)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *client) CreateOrder(data types.RequestCreate) (json.RawMessage, error) {
	return c.call("createOrder", data)
}

func (c *client) FillOrder(data types.RequestFill) (json.RawMessage, error) {
	return c.call("fillOrder", data)
}

func (c *client) CancelOrder(data types.RequestCancel) (json.RawMessage, error) {
	return c.call("cancelOrder", data)
}

func (c *client) CancelOrderByResolver(data types.RequestCancelByResolver) (json.RawMessage, error) {
	return c.call("cancelOrderByResolver", data)
}

func (c *client) GetOrder(data types.RequestGetOrder) (json.RawMessage, error) {
	return c.call("getOrder", data)
}

func (c *client) OrderIdentity(data types.RequestIdentity) (json.RawMessage, error) {
	return c.call("orderIdentity", data)
}

func (c *client) Quote(data types.RequestQuote) (json.RawMessage, error) {
	return c.call("quote", data)
}

func (c *client) Deposit(data types.RequestDeposit) (json.RawMessage, error) {
	return c.call("deposit", data)
}

func (c *client) Claim(data types.RequestClaim) (json.RawMessage, error) {
	return c.call("claim", data)
}

func (c *client) Refund(data types.RequestEscrowID) (json.RawMessage, error) {
	return c.call("refund", data)
}

func (c *client) GetEscrow(data types.RequestEscrowID) (json.RawMessage, error) {
	return c.call("getEscrow", data)
}

func (c *client) GetSecret(data types.RequestEscrowID) (json.RawMessage, error) {
	return c.call("getSecret", data)
}

func (c *client) IsActive(data types.RequestEscrowID) (json.RawMessage, error) {
	return c.call("isActive", data)
}

func (c *client) EscrowCounter() (json.RawMessage, error) {
	return c.call("escrowCounter", struct{}{})
}

func (c *client) RegisterResolver(data types.RequestResolver) (json.RawMessage, error) {
	return c.call("registerResolver", data)
}

func (c *client) DeregisterResolver(data types.RequestResolver) (json.RawMessage, error) {
	return c.call("deregisterResolver", data)
}

func (c *client) SetAuthority(data types.RequestAuthority) (json.RawMessage, error) {
	return c.call("setAuthority", data)
}

func (c *client) Balance(data types.RequestBalance) (json.RawMessage, error) {
	return c.call("balance", data)
}
