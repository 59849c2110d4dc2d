package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
)

// oauthScope is fixed by the downstream IdP contract
const oauthScope = "openid email offline_access"

// Endpoints is one environment's set of IdP and marketplace URLs
type Endpoints struct {
	AuthURL   string
	TokenURL  string
	RevokeURL string

	SelectCompanyURL string
	Code2TokenURL    string

	GraphQLURL string
}

// DemoEndpoints returns the partner demo environment
func DemoEndpoints() Endpoints {
	const authBase = "https://auth.lessor.dk/auth/realms/danlon-integration-demo"
	const marketBase = "https://danlon-integration-demo.lessor.dk"
	return Endpoints{
		AuthURL:          authBase + "/protocol/openid-connect/auth",
		TokenURL:         authBase + "/protocol/openid-connect/token",
		RevokeURL:        authBase + "/protocol/openid-connect/revoke",
		SelectCompanyURL: marketBase + "/select-company",
		Code2TokenURL:    marketBase + "/code2token",
		GraphQLURL:       "https://api-demo.danlon.dk/graphql",
	}
}

// ProdEndpoints returns the production environment
func ProdEndpoints() Endpoints {
	const authBase = "https://auth.lessor.dk/auth/realms/danlon"
	const marketBase = "https://danlon.lessor.dk"
	return Endpoints{
		AuthURL:          authBase + "/protocol/openid-connect/auth",
		TokenURL:         authBase + "/protocol/openid-connect/token",
		RevokeURL:        authBase + "/protocol/openid-connect/revoke",
		SelectCompanyURL: marketBase + "/select-company",
		Code2TokenURL:    marketBase + "/code2token",
		GraphQLURL:       "https://api.danlon.dk/graphql",
	}
}

// EndpointsFor picks the environment set by name; anything but "prod" is demo
func EndpointsFor(environment string) Endpoints {
	if environment == "prod" {
		return ProdEndpoints()
	}
	return DemoEndpoints()
}

// tokenResponse is the IdP's token grant reply
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// broker speaks the three-party authorization flow: IdP grants, marketplace
// company selection and the code2token handover
type broker struct {
	http         *http.Client
	eps          Endpoints
	clientID     string
	clientSecret string
	appBaseURL   string
	log          logger.Logger
}

func newBroker(eps Endpoints, clientID, clientSecret, appBaseURL string, timeout time.Duration) *broker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &broker{
		http:         &http.Client{Timeout: timeout},
		eps:          eps,
		clientID:     clientID,
		clientSecret: clientSecret,
		appBaseURL:   strings.TrimRight(appBaseURL, "/"),
		log:          *logger.Named("danlon.oauth"),
	}
}

// redirectURI is the callback URL registered with the IdP; a return_uri is
// folded into it so it survives the round trip. The exchange must later use
// this exact string
func (b *broker) redirectURI(returnURI string) string {
	uri := b.appBaseURL + "/danlon/callback"
	if returnURI != "" {
		uri += "?return_uri=" + url.QueryEscape(returnURI)
	}
	return uri
}

// AuthorizeURL builds the IdP authorization redirect
func (b *broker) AuthorizeURL(returnURI string) string {
	q := url.Values{}
	q.Set("client_id", b.clientID)
	q.Set("scope", oauthScope)
	q.Set("response_type", "code")
	q.Set("redirect_uri", b.redirectURI(returnURI))
	return b.eps.AuthURL + "?" + q.Encode()
}

// ExchangeCode trades the authorization code for the temporary token pair
func (b *broker) ExchangeCode(ctx context.Context, code, redirectURI string) (tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", b.clientID)
	form.Set("client_secret", b.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return b.postForm(ctx, b.eps.TokenURL, form)
}

// SelectCompanyURL points the user at the marketplace with the temporary
// access token base64-encoded, returning to the success endpoint
func (b *broker) SelectCompanyURL(tempAccessToken, returnURI string) string {
	successURI := b.appBaseURL + "/danlon/success"
	if returnURI != "" {
		successURI += "?return_uri=" + url.QueryEscape(returnURI)
	}

	q := url.Values{}
	q.Set("token", base64.StdEncoding.EncodeToString([]byte(tempAccessToken)))
	q.Set("return_uri", successURI)
	return b.eps.SelectCompanyURL + "?" + q.Encode()
}

// Code2Token exchanges the marketplace code for the final token pair
func (b *broker) Code2Token(ctx context.Context, code string) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.eps.Code2TokenURL+"?code="+url.QueryEscape(code), nil)
	if err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUnknown, "code2token request")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "code2token call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return tokenResponse{}, perr.UpstreamHTTPf("code2token returned %d: %s", resp.StatusCode, string(tail))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode code2token response")
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return tokenResponse{}, perr.UpstreamHTTPf("missing tokens in code2token response")
	}
	return tok, nil
}

// Refresh trades a refresh token for a new access token; the IdP may rotate
// the refresh token
func (b *broker) Refresh(ctx context.Context, refreshToken string) (tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", b.clientID)
	form.Set("client_secret", b.clientSecret)
	form.Set("refresh_token", refreshToken)
	return b.postForm(ctx, b.eps.TokenURL, form)
}

// Revoke invalidates the refresh token upstream
func (b *broker) Revoke(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", b.clientID)
	form.Set("client_secret", b.clientSecret)
	form.Set("token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.eps.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "revoke request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.http.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "revoke call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return perr.UpstreamHTTPf("revoke returned %d: %s", resp.StatusCode, string(tail))
	}
	return nil
}

func (b *broker) postForm(ctx context.Context, endpoint string, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUnknown, "token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.http.Do(req)
	if err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "token call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return tokenResponse{}, perr.UpstreamHTTPf("token endpoint returned %d: %s", resp.StatusCode, string(tail))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode token response")
	}
	if tok.AccessToken == "" {
		return tokenResponse{}, perr.UpstreamHTTPf("no access_token in response")
	}
	return tok, nil
}
