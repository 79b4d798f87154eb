package rpc

import "github.com/dmitrijs2005/gophjournal/internal/docstore"

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type SetDocumentRequest struct {
	Ref    docstore.Ref   `json:"ref"`
	Fields map[string]any `json:"fields"`
	Merge  bool           `json:"merge"`
}

type UpdateDocumentRequest struct {
	Ref    docstore.Ref   `json:"ref"`
	Fields map[string]any `json:"fields"`
}

type GetDocumentRequest struct {
	Ref docstore.Ref `json:"ref"`
}

type GetDocumentResponse struct {
	Document docstore.Document `json:"document"`
}

type QueryDocumentsRequest struct {
	Query docstore.Query `json:"query"`
}

type QueryDocumentsResponse struct {
	Documents []docstore.Document `json:"documents"`
}

type ListDocumentsRequest struct {
	Collection string `json:"collection"`
}

type ListDocumentsResponse struct {
	IDs []string `json:"ids"`
}

type CountDocumentsRequest struct {
	Collection string            `json:"collection"`
	Filters    []docstore.Filter `json:"filters,omitempty"`
}

type CountDocumentsResponse struct {
	Count int64 `json:"count"`
}

// PresignRequest asks for a URL for one media key, relative to the user's
// namespace (for example "entries/<id>/image.jpg").
type PresignRequest struct {
	Key string `json:"key"`
}

type PresignResponse struct {
	URL string `json:"url"`
}

type DeleteMediaRequest struct {
	Prefix string `json:"prefix"`
}

type DeleteMediaResponse struct {
	Deleted int `json:"deleted"`
}

// Ack is the empty body returned by write calls.
type Ack struct{}
