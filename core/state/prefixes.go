package state

var (
	kvPrefix          = []byte("kv/")
	noncePrefix       = []byte("nonce/")
	hostPrefix        = []byte("lodging/host/")
	guestPrefix       = []byte("lodging/guest/")
	listingPrefix     = []byte("lodging/listing/")
	reservationPrefix = []byte("lodging/reservation/")
	escrowPrefix      = []byte("escrow/payment/")
	mintPrefix        = []byte("token/mint/")
	tokenAcctPrefix   = []byte("token/account/")
)

// Maximum encoded sizes, in bytes, of each record type. They bound the
// declared string lengths plus RLP framing.
const (
	MaxHostSize         = 1_200
	MaxGuestSize        = 1_250
	MaxListingSize      = 1_050
	MaxReservationSize  = 256
	MaxEscrowSize       = 256
	MaxMintSize         = 128
	MaxTokenAccountSize = 128
)
