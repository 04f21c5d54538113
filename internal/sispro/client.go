// Package sispro talks to the SISPRO FEV-RIPS validation API: one login
// per run, sequential package submissions with a bearer token, and
// classification of the ambiguous responses the API returns.
package sispro

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Validation result classes and codes the classifier keys on.
const (
	ClassRejected = "RECHAZADO"
	ClassNotice   = "NOTIFICACION"

	// CodeAlreadyApproved marks a package rejected because it was already
	// approved in a previous submission; its remarks carry the original CUV.
	CodeAlreadyApproved = "RVG18"
	// CodeDuplicate marks a duplicate submission; its remarks embed the
	// CUV as a 64-char hex string.
	CodeDuplicate = "RVG02"
)

// ErrNoToken is returned by Submit when Login has not succeeded yet.
var ErrNoToken = errors.New("no session token, login first")

// ValidationResult is one itemized entry of a submission response.
type ValidationResult struct {
	Clase         string `json:"Clase"`
	Codigo        string `json:"Codigo"`
	Descripcion   string `json:"Descripcion"`
	Observaciones string `json:"Observaciones"`
	Fuente        string `json:"Fuente,omitempty"`
}

// SubmitResponse is the raw API response for one package submission.
type SubmitResponse struct {
	ResultState           bool               `json:"ResultState"`
	CodigoUnicoValidacion string             `json:"CodigoUnicoValidacion"`
	ProcesoID             int64              `json:"ProcesoId,omitempty"`
	NumFactura            string             `json:"NumFactura,omitempty"`
	FechaRadicacion       string             `json:"FechaRadicacion,omitempty"`
	ResultadosValidacion  []ValidationResult `json:"ResultadosValidacion"`
}

// Credentials identify the reporting institution against SISPRO.
type Credentials struct {
	DocumentType   string
	DocumentNumber string
	Password       string
	NIT            string
}

type loginRequest struct {
	Persona struct {
		Identificacion struct {
			Tipo   string `json:"tipo"`
			Numero string `json:"numero"`
		} `json:"identificacion"`
	} `json:"persona"`
	Clave string `json:"clave"`
	NIT   string `json:"nit"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Client submits assembled packages to the SISPRO API. It holds the
// session token obtained by Login; one login serves a whole run.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	token      string
}

// NewClient builds a client for the given API base URL. insecure disables
// TLS verification for environments with self-signed certificates.
func NewClient(baseURL string, creds Credentials, insecure bool) *Client {
	transport := http.DefaultTransport
	if insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: transport,
		},
	}
}

// Login authenticates against /Auth/LoginSISPRO and stores the session
// token. A failed login is fatal for the run: no submission can proceed.
func (c *Client) Login(ctx context.Context) error {
	var req loginRequest
	req.Persona.Identificacion.Tipo = c.creds.DocumentType
	req.Persona.Identificacion.Numero = c.creds.DocumentNumber
	req.Clave = c.creds.Password
	req.NIT = c.creds.NIT

	body, status, err := c.post(ctx, "/Auth/LoginSISPRO", req, "")
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("login failed: HTTP %d: %s", status, truncate(body, 300))
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse login response: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("login response carried no token")
	}
	c.token = resp.Token
	return nil
}

// Submit posts one assembled package to /PaquetesFevRips/CargarFevRips.
// A non-2xx status whose body still carries itemized validation results is
// returned as a response (the classifier decides); anything else is a
// communication error for the caller to handle.
func (c *Client) Submit(ctx context.Context, pkg any) (*SubmitResponse, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}

	body, status, err := c.post(ctx, "/PaquetesFevRips/CargarFevRips", pkg, c.token)
	if err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}

	var resp SubmitResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr == nil {
		if status >= 200 && status < 300 || len(resp.ResultadosValidacion) > 0 {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("submit failed: HTTP %d: %s", status, truncate(body, 300))
}

func (c *Client) post(ctx context.Context, path string, payload any, token string) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
