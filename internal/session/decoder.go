// Package session decodes the session token carried in a session link.
//
// A link path is either "/{payload}" or "/{payload}.{signature}", where payload
// is URL-safe base64 of a JSON object. The signature is carried through
// untouched; it is verified by the server, not here.
package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pion/logging"

	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
)

// Decoder turns link paths into session tokens.
type Decoder struct {
	now      func() time.Time
	validate *validator.Validate
	log      logging.LeveledLogger
}

// NewDecoder returns a decoder using the wall clock. A nil factory disables
// logging.
func NewDecoder(lf logging.LoggerFactory) *Decoder {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Decoder{
		now:      time.Now,
		validate: v,
		log:      logx.Scoped(lf, "session"),
	}
}

// WithClock returns a copy of d that reads the current time from now.
func (d *Decoder) WithClock(now func() time.Time) *Decoder {
	cp := *d
	cp.now = now
	return &cp
}

var defaultDecoder = NewDecoder(nil)

// Decode decodes urlPath with a silent, wall-clock decoder.
func Decode(urlPath string) (*domain.SessionToken, error) {
	return defaultDecoder.Decode(urlPath)
}

// Decode extracts and validates the token in urlPath.
//
// An expired token is returned together with an error wrapping
// domain.ErrExpired; every other error returns a nil token.
func (d *Decoder) Decode(urlPath string) (*domain.SessionToken, error) {
	token, err := d.decode(urlPath)
	if err != nil {
		d.log.Warnf("decode token: %v", err)
	}
	return token, err
}

func (d *Decoder) decode(urlPath string) (*domain.SessionToken, error) {
	rest := strings.TrimPrefix(urlPath, "/")
	if rest == "" {
		return nil, domain.ErrMissingToken
	}

	payload, signature := SplitSigned(rest)
	if signature != "" {
		d.log.Debugf("token carries a %d-byte signature", len(signature))
	}

	text, err := Base64URLDecode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", domain.ErrDecode, err)
	}

	var token domain.SessionToken
	if err := json.Unmarshal([]byte(text), &token); err != nil {
		return nil, fmt.Errorf("%w: json: %v", domain.ErrDecode, err)
	}

	if err := d.validate.Struct(&token); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, missingFields(err))
	}

	if token.Version != domain.TokenVersion {
		d.log.Warnf("unknown token version %d, continuing", token.Version)
	}

	if token.ExpiredAt(d.now().Unix()) {
		return &token, fmt.Errorf("%w: at %s", domain.ErrExpired, time.Unix(*token.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	return &token, nil
}

// SplitSigned splits "payload.signature" on the last dot. A dot at index 0 or
// no dot at all leaves the whole string as payload.
func SplitSigned(s string) (payload, signature string) {
	if i := strings.LastIndexByte(s, '.'); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// Encode builds the link path for token, appending signature when non-empty.
func Encode(token domain.SessionToken, signature string) (string, error) {
	raw, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}
	path := "/" + Base64URLEncode(string(raw))
	if signature != "" {
		path += "." + signature
	}
	return path, nil
}

// PathFromLink accepts either a full session link or a bare path and returns
// the path component.
func PathFromLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if !strings.Contains(link, "://") {
		if link != "" && !strings.HasPrefix(link, "/") {
			link = "/" + link
		}
		return link, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse session link: %w", err)
	}
	return u.Path, nil
}

func missingFields(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return "missing " + strings.Join(names, ", ")
}
