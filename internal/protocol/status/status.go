package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var ErrUnknownStatus = errors.New("status: unknown status code")

// Code is one member of the closed status vocabulary.
type Code uint16

const (
	Continue           Code = 100
	SwitchingProtocols Code = 101
	Processing         Code = 102
	EarlyHints         Code = 103

	OK                          Code = 200
	Created                     Code = 201
	Accepted                    Code = 202
	NonAuthoritativeInformation Code = 203
	NoContent                   Code = 204
	ResetContent                Code = 205
	PartialContent              Code = 206
	MultiStatus                 Code = 207
	AlreadyReported             Code = 208
	IMUsed                      Code = 226

	MultipleChoices   Code = 300
	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	UseProxy          Code = 305
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest                  Code = 400
	Unauthorized                Code = 401
	PaymentRequired             Code = 402
	Forbidden                   Code = 403
	NotFound                    Code = 404
	MethodNotAllowed            Code = 405
	NotAcceptable               Code = 406
	ProxyAuthenticationRequired Code = 407
	RequestTimeout              Code = 408
	Conflict                    Code = 409
	Gone                        Code = 410
	LengthRequired              Code = 411
	PreconditionFailed          Code = 412
	PayloadTooLarge             Code = 413
	URITooLong                  Code = 414
	UnsupportedMediaType        Code = 415
	RangeNotSatisfiable         Code = 416
	ExpectationFailed           Code = 417
	ImATeapot                   Code = 418
	MisdirectedRequest          Code = 421
	UnprocessableEntity         Code = 422
	Locked                      Code = 423
	FailedDependency            Code = 424
	TooEarly                    Code = 425
	UpgradeRequired             Code = 426
	PreconditionRequired        Code = 428
	TooManyRequests             Code = 429
	RequestHeaderFieldsTooLarge Code = 431
	UnavailableForLegalReasons  Code = 451

	InternalServerError           Code = 500
	NotImplemented                Code = 501
	BadGateway                    Code = 502
	ServiceUnavailable            Code = 503
	GatewayTimeout                Code = 504
	HTTPVersionNotSupported       Code = 505
	VariantAlsoNegotiates         Code = 506
	InsufficientStorage           Code = 507
	LoopDetected                  Code = 508
	NotExtended                   Code = 510
	NetworkAuthenticationRequired Code = 511
)

type entry struct {
	ident string
	name  string
}

// table maps each code to its wire identifier and canonical display name.
var table = map[Code]entry{
	Continue:                      {ident: "Continue", name: "Continue"},
	SwitchingProtocols:            {ident: "SwitchingProtocols", name: "Switching Protocols"},
	Processing:                    {ident: "Processing", name: "Processing"},
	EarlyHints:                    {ident: "EarlyHints", name: "Early Hints"},
	OK:                            {ident: "Ok", name: "OK"},
	Created:                       {ident: "Created", name: "Created"},
	Accepted:                      {ident: "Accepted", name: "Accepted"},
	NonAuthoritativeInformation:   {ident: "NonAuthoritativeInformation", name: "Non-Authoritative Information"},
	NoContent:                     {ident: "NoContent", name: "No Content"},
	ResetContent:                  {ident: "ResetContent", name: "Reset Content"},
	PartialContent:                {ident: "PartialContent", name: "Partial Content"},
	MultiStatus:                   {ident: "MultiStatus", name: "Multi-Status"},
	AlreadyReported:               {ident: "AlreadyReported", name: "Already Reported"},
	IMUsed:                        {ident: "ImUsed", name: "IM Used"},
	MultipleChoices:               {ident: "MultipleChoices", name: "Multiple Choices"},
	MovedPermanently:              {ident: "MovedPermanently", name: "Moved Permanently"},
	Found:                         {ident: "Found", name: "Found"},
	SeeOther:                      {ident: "SeeOther", name: "See Other"},
	NotModified:                   {ident: "NotModified", name: "Not Modified"},
	UseProxy:                      {ident: "UseProxy", name: "Use Proxy"},
	TemporaryRedirect:             {ident: "TemporaryRedirect", name: "Temporary Redirect"},
	PermanentRedirect:             {ident: "PermanentRedirect", name: "Permanent Redirect"},
	BadRequest:                    {ident: "BadRequest", name: "Bad Request"},
	Unauthorized:                  {ident: "Unauthorized", name: "Unauthorized"},
	PaymentRequired:               {ident: "PaymentRequired", name: "Payment Required"},
	Forbidden:                     {ident: "Forbidden", name: "Forbidden"},
	NotFound:                      {ident: "NotFound", name: "Not Found"},
	MethodNotAllowed:              {ident: "MethodNotAllowed", name: "Method Not Allowed"},
	NotAcceptable:                 {ident: "NotAcceptable", name: "Not Acceptable"},
	ProxyAuthenticationRequired:   {ident: "ProxyAuthenticationRequired", name: "Proxy Authentication Required"},
	RequestTimeout:                {ident: "RequestTimeout", name: "Request Timeout"},
	Conflict:                      {ident: "Conflict", name: "Conflict"},
	Gone:                          {ident: "Gone", name: "Gone"},
	LengthRequired:                {ident: "LengthRequired", name: "Length Required"},
	PreconditionFailed:            {ident: "PreconditionFailed", name: "Precondition Failed"},
	PayloadTooLarge:               {ident: "PayloadTooLarge", name: "Payload Too Large"},
	URITooLong:                    {ident: "UriTooLong", name: "URI Too Long"},
	UnsupportedMediaType:          {ident: "UnsupportedMediaType", name: "Unsupported Media Type"},
	RangeNotSatisfiable:           {ident: "RangeNotSatisfiable", name: "Range Not Satisfiable"},
	ExpectationFailed:             {ident: "ExpectationFailed", name: "Expectation Failed"},
	ImATeapot:                     {ident: "ImATeapot", name: "I'm a teapot"},
	MisdirectedRequest:            {ident: "MisdirectedRequest", name: "Misdirected Request"},
	UnprocessableEntity:           {ident: "UnprocessableEntity", name: "Unprocessable Entity"},
	Locked:                        {ident: "Locked", name: "Locked"},
	FailedDependency:              {ident: "FailedDependency", name: "Failed Dependency"},
	TooEarly:                      {ident: "TooEarly", name: "Too Early"},
	UpgradeRequired:               {ident: "UpgradeRequired", name: "Upgrade Required"},
	PreconditionRequired:          {ident: "PreconditionRequired", name: "Precondition Required"},
	TooManyRequests:               {ident: "TooManyRequests", name: "Too Many Requests"},
	RequestHeaderFieldsTooLarge:   {ident: "RequestHeaderFieldsTooLarge", name: "Request Header Fields Too Large"},
	UnavailableForLegalReasons:    {ident: "UnavailableForLegalReasons", name: "Unavailable For Legal Reasons"},
	InternalServerError:           {ident: "InternalServerError", name: "Internal Server Error"},
	NotImplemented:                {ident: "NotImplemented", name: "Not Implemented"},
	BadGateway:                    {ident: "BadGateway", name: "Bad Gateway"},
	ServiceUnavailable:            {ident: "ServiceUnavailable", name: "Service Unavailable"},
	GatewayTimeout:                {ident: "GatewayTimeout", name: "Gateway Timeout"},
	HTTPVersionNotSupported:       {ident: "HttpVersionNotSupported", name: "HTTP Version Not Supported"},
	VariantAlsoNegotiates:         {ident: "VariantAlsoNegotiates", name: "Variant Also Negotiates"},
	InsufficientStorage:           {ident: "InsufficientStorage", name: "Insufficient Storage"},
	LoopDetected:                  {ident: "LoopDetected", name: "Loop Detected"},
	NotExtended:                   {ident: "NotExtended", name: "Not Extended"},
	NetworkAuthenticationRequired: {ident: "NetworkAuthenticationRequired", name: "Network Authentication Required"},
}

var (
	byIdent = make(map[string]Code, len(table))
	byName  = make(map[string]Code, len(table))
	ordered = make([]Code, 0, len(table))
)

func init() {
	for code, e := range table {
		byIdent[e.ident] = code
		byName[e.name] = code
		ordered = append(ordered, code)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
}

// All returns every code in ascending order.
func All() []Code {
	out := make([]Code, len(ordered))
	copy(out, ordered)
	return out
}

// Lookup returns the code for an integer value, if it is in the vocabulary.
func Lookup(n int) (Code, bool) {
	if n < 0 || n > 0xFFFF {
		return 0, false
	}
	c := Code(n)
	return c, c.Valid()
}

// Parse maps a canonical display name ("Bad Request") back to its code.
func Parse(name string) (Code, bool) {
	c, ok := byName[name]
	return c, ok
}

// ParseIdent maps a wire identifier ("BadRequest") back to its code.
func ParseIdent(ident string) (Code, bool) {
	c, ok := byIdent[ident]
	return c, ok
}

func (c Code) Valid() bool {
	_, ok := table[c]
	return ok
}

// String returns the canonical display name.
func (c Code) String() string {
	if e, ok := table[c]; ok {
		return e.name
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}

// Ident returns the identifier used on the wire.
func (c Code) Ident() string {
	if e, ok := table[c]; ok {
		return e.ident
	}
	return ""
}

// Class is the family a code belongs to.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassInformational
	ClassSuccess
	ClassRedirection
	ClassClientError
	ClassServerError
)

func (c Class) String() string {
	switch c {
	case ClassInformational:
		return "informational"
	case ClassSuccess:
		return "success"
	case ClassRedirection:
		return "redirection"
	case ClassClientError:
		return "client_error"
	case ClassServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

func (c Code) Class() Class {
	if !c.Valid() {
		return ClassUnknown
	}
	return Class(c / 100)
}

func (c Code) MarshalJSON() ([]byte, error) {
	e, ok := table[c]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint16(c))
	}
	return json.Marshal(e.ident)
}

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return fmt.Errorf("%w: expected identifier string, got %s", ErrUnknownStatus, data)
	}
	var ident string
	if err := json.Unmarshal(data, &ident); err != nil {
		return err
	}
	code, ok := byIdent[ident]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, ident)
	}
	*c = code
	return nil
}
