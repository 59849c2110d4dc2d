package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	perr "overtid/internal/platform/errors"
	"overtid/internal/platform/logger"
	"overtid/internal/services/api/danlon/domain"
)

const currentCompanyQuery = `
query {
  current_company {
    id
    name
    vat_number
  }
}`

const employeesQuery = `
query GetCompanyEmployees($companyIds: [ID!]!) {
  companiesExt(input: {companyIds: $companyIds}) {
    companies {
      employees {
        employees {
          id
          active
          domainId
          name
          email
        }
      }
    }
  }
}`

const companyMetaQuery = `
query {
  current_company {
    meta {
      pay_codes { id name code }
      absence_codes { id name code }
      hour_types { id name }
    }
  }
}`

const payPartsMetaQuery = `
query GetPayPartsMeta {
  payPartsMeta {
    payPartsMeta {
      code
      description
      unitsAllowed
      rateAllowed
      amountAllowed
    }
  }
}`

// gqlClient talks to the payroll GraphQL endpoint. Transport failures and
// non-200 statuses surface as upstream HTTP errors; a 200 carrying an
// errors[] array surfaces as an upstream GraphQL error
type gqlClient struct {
	http *http.Client
	url  string
	log  logger.Logger
}

func newGQLClient(endpoint string, timeout time.Duration) *gqlClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &gqlClient{
		http: &http.Client{Timeout: timeout},
		url:  endpoint,
		log:  *logger.Named("danlon.graphql"),
	}
}

type gqlError struct {
	Message string `json:"message"`
}

func (g *gqlClient) do(ctx context.Context, accessToken, query string, variables map[string]any, out any) error {
	payload := map[string]any{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "graphql request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.http.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "graphql call failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return perr.UpstreamHTTPf("graphql returned %d: %s", resp.StatusCode, string(tail))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode graphql response")
	}

	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return perr.UpstreamGraphQLf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUpstreamHTTP, "decode graphql data")
		}
	}
	return nil
}

// CurrentCompany returns the company bound to the access token
func (g *gqlClient) CurrentCompany(ctx context.Context, accessToken string) (id, name string, err error) {
	var out struct {
		CurrentCompany struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"current_company"`
	}
	if err := g.do(ctx, accessToken, currentCompanyQuery, nil, &out); err != nil {
		return "", "", err
	}
	return out.CurrentCompany.ID, out.CurrentCompany.Name, nil
}

// Employees lists the company's payroll employees; inactive ones are dropped
// unless includeDeleted is set
func (g *gqlClient) Employees(ctx context.Context, accessToken, companyID string, includeDeleted bool) ([]domain.Employee, error) {
	var out struct {
		CompaniesExt struct {
			Companies []struct {
				Employees struct {
					Employees []struct {
						ID       string `json:"id"`
						Active   bool   `json:"active"`
						DomainID string `json:"domainId"`
						Name     string `json:"name"`
						Email    string `json:"email"`
					} `json:"employees"`
				} `json:"employees"`
			} `json:"companies"`
		} `json:"companiesExt"`
	}
	vars := map[string]any{"companyIds": []string{companyID}}
	if err := g.do(ctx, accessToken, employeesQuery, vars, &out); err != nil {
		return nil, err
	}

	var list []domain.Employee
	for _, c := range out.CompaniesExt.Companies {
		for _, e := range c.Employees.Employees {
			if !e.Active && !includeDeleted {
				continue
			}
			list = append(list, domain.Employee{
				ID:       e.ID,
				Name:     e.Name,
				Email:    e.Email,
				DomainID: e.DomainID,
				Deleted:  !e.Active,
			})
		}
	}
	return list, nil
}

// CompanyMeta returns the code vocabularies attached to the company
func (g *gqlClient) CompanyMeta(ctx context.Context, accessToken string) (domain.PayPartMeta, error) {
	var out struct {
		CurrentCompany struct {
			Meta struct {
				PayCodes []struct {
					Name string `json:"name"`
					Code string `json:"code"`
				} `json:"pay_codes"`
				AbsenceCodes []struct {
					Name string `json:"name"`
					Code string `json:"code"`
				} `json:"absence_codes"`
				HourTypes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"hour_types"`
			} `json:"meta"`
		} `json:"current_company"`
	}
	if err := g.do(ctx, accessToken, companyMetaQuery, nil, &out); err != nil {
		return domain.PayPartMeta{}, err
	}

	meta := domain.PayPartMeta{}
	for _, c := range out.CurrentCompany.Meta.PayCodes {
		meta.PayCodes = append(meta.PayCodes, domain.CodeInfo{Code: c.Code, Name: c.Name})
	}
	for _, c := range out.CurrentCompany.Meta.AbsenceCodes {
		meta.AbsenceCodes = append(meta.AbsenceCodes, domain.CodeInfo{Code: c.Code, Name: c.Name})
	}
	for _, c := range out.CurrentCompany.Meta.HourTypes {
		meta.HourTypes = append(meta.HourTypes, domain.CodeInfo{Code: c.ID, Name: c.Name})
	}
	return meta, nil
}

// PayPartsMeta lists pay-part codes with their allowed value kinds, merged
// into the meta vocabulary as pay codes
func (g *gqlClient) PayPartsMeta(ctx context.Context, accessToken string) ([]domain.CodeInfo, error) {
	var out struct {
		PayPartsMeta struct {
			PayPartsMeta []struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"payPartsMeta"`
		} `json:"payPartsMeta"`
	}
	if err := g.do(ctx, accessToken, payPartsMetaQuery, nil, &out); err != nil {
		return nil, err
	}

	var list []domain.CodeInfo
	for _, c := range out.PayPartsMeta.PayPartsMeta {
		list = append(list, domain.CodeInfo{Code: c.Code, Name: c.Description})
	}
	return list, nil
}

// payPart is one line of the createPayParts mutation. Units are centesimal
// hours, amounts whole DKK; zero-valued fields stay off the wire
type payPart struct {
	EmployeeID string
	Code       string
	Units      int
	Rate       int
	Amount     int
}

// unitsFromHours converts decimal hours to the centesimal integer the
// mutation expects (7.5h -> 750)
func unitsFromHours(hours float64) int {
	return int(math.Round(hours * 100))
}

// escapeGQLString makes a value safe inside a double-quoted GraphQL literal
func escapeGQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

// buildCreatePayParts renders the mutation with an inline literal input; the
// endpoint rejects typed variables on this mutation
func buildCreatePayParts(companyID string, parts []payPart) string {
	var b strings.Builder
	b.WriteString("mutation CreatePayParts {\n  createPayParts(input: {\n    companyId: \"")
	b.WriteString(escapeGQLString(companyID))
	b.WriteString("\",\n    payParts: [\n")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(`      {employeeId: "`)
		b.WriteString(escapeGQLString(p.EmployeeID))
		b.WriteString(`", code: "`)
		b.WriteString(escapeGQLString(p.Code))
		b.WriteString(`"`)
		if p.Units != 0 {
			fmt.Fprintf(&b, ", units: %d", p.Units)
		}
		if p.Rate != 0 {
			fmt.Fprintf(&b, ", rate: %d", p.Rate)
		}
		if p.Amount != 0 {
			fmt.Fprintf(&b, ", amount: %d", p.Amount)
		}
		b.WriteString("}")
	}
	b.WriteString("\n    ]\n  }) {\n    createdPayParts {\n      id\n      code\n      units\n      rate\n      amount\n      employee { id name }\n    }\n  }\n}")
	return b.String()
}

// createdPayPart echoes one pay part the mutation accepted
type createdPayPart struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Units  int    `json:"units"`
	Rate   int    `json:"rate"`
	Amount int    `json:"amount"`

	Employee struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"employee"`
}

// CreatePayParts submits all pay parts in a single mutation
func (g *gqlClient) CreatePayParts(ctx context.Context, accessToken, companyID string, parts []payPart) ([]createdPayPart, error) {
	if len(parts) == 0 {
		return nil, nil
	}

	var out struct {
		CreatePayParts struct {
			CreatedPayParts []createdPayPart `json:"createdPayParts"`
		} `json:"createPayParts"`
	}
	if err := g.do(ctx, accessToken, buildCreatePayParts(companyID, parts), nil, &out); err != nil {
		return nil, err
	}
	return out.CreatePayParts.CreatedPayParts, nil
}
