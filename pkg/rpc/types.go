package rpc

// PageRequest is the body of the paginated by-height queries. Height 0 means latest.
type PageRequest struct {
	Height     uint64 `json:"height"`
	PageNumber int    `json:"pageNumber,omitempty"`
	PerPage    int    `json:"perPage,omitempty"`
}

// DefaultPerPage is the largest page the Canopy RPC serves.
const DefaultPerPage = 1000

func NewPageRequest(height uint64) PageRequest {
	return PageRequest{Height: height, PerPage: DefaultPerPage}
}

// HeightRequest is the body of the single object by-height queries.
type HeightRequest struct {
	Height uint64 `json:"height"`
}
