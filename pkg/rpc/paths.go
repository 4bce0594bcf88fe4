package rpc

// Canopy RPC query paths.
const (
	headPath             = "/v1/query/height"
	blockByHeightPath    = "/v1/query/block-by-height"
	validatorsPath       = "/v1/query/validators"
	accountsByHeightPath = "/v1/query/accounts"
)
