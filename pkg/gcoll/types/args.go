package types

// Kind tags which collective variant a CollArgs value carries.
type Kind uint8

const (
	KindBroadcast Kind = iota
	KindBroadcastM
	KindScatter
	KindScatterM
	KindGather
	KindGatherM
	KindGatherAll
	KindGatherAllM
	KindExchange
	KindExchangeM
)

func (k Kind) String() string {
	switch k {
	case KindBroadcast:
		return "broadcast"
	case KindBroadcastM:
		return "broadcastM"
	case KindScatter:
		return "scatter"
	case KindScatterM:
		return "scatterM"
	case KindGather:
		return "gather"
	case KindGatherM:
		return "gatherM"
	case KindGatherAll:
		return "gather_all"
	case KindGatherAllM:
		return "gather_allM"
	case KindExchange:
		return "exchange"
	case KindExchangeM:
		return "exchangeM"
	default:
		return "unknown"
	}
}

// BcastArgs is the argument payload for a single-destination broadcast.
type BcastArgs struct {
	Dst      []byte
	SrcImage int
	Src      []byte
	NBytes   int
}

// BcastMArgs broadcasts into a per-image list of local destinations.
type BcastMArgs struct {
	DstList  [][]byte
	SrcImage int
	Src      []byte
	NBytes   int
}

// ScatterArgs splits a root's buffer into equal NBytes slices, one per
// image, with each non-root image receiving its slice into Dst.
type ScatterArgs struct {
	Dst       []byte
	RootImage int
	Src       []byte // valid (and full-length) only at RootImage
	NBytes    int
}

// ScatterMArgs is the per-image-destination-list variant of ScatterArgs.
type ScatterMArgs struct {
	DstList   [][]byte
	RootImage int
	Src       []byte
	NBytes    int
}

// GatherArgs collects one NBytes slice per image into the root's Dst
// buffer, laid out in image order.
type GatherArgs struct {
	Dst       []byte // valid (and full-length) only at RootImage
	RootImage int
	Src       []byte
	NBytes    int
}

// GatherMArgs is the per-image-source-list variant of GatherArgs.
type GatherMArgs struct {
	Dst       []byte
	RootImage int
	SrcList   [][]byte
	NBytes    int
}

// GatherAllArgs collects every image's NBytes slice into every image's Dst
// buffer - a gather with every rank as root simultaneously.
type GatherAllArgs struct {
	Dst    []byte
	Src    []byte
	NBytes int
}

// GatherAllMArgs is the per-image-list variant of GatherAllArgs.
type GatherAllMArgs struct {
	DstList [][]byte
	SrcList [][]byte
	NBytes  int
}

// ExchangeArgs is an all-to-all: at image r, Dst[i*NBytes:(i+1)*NBytes]
// receives image i's r-th NBytes slice of Src.
type ExchangeArgs struct {
	Dst    []byte
	Src    []byte
	NBytes int
}

// ExchangeMArgs is the per-image-list variant of ExchangeArgs.
type ExchangeMArgs struct {
	DstList [][]byte
	SrcList [][]byte
	NBytes  int
}

// CollArgs is the tagged union of per-collective arguments attached to a
// generic algorithm data block. Exactly one of the variant fields is valid,
// selected by Kind; the accessor methods assert the tag rather than letting
// callers reach into an unchecked union.
type CollArgs struct {
	Kind Kind

	Bcast      *BcastArgs
	BcastM     *BcastMArgs
	Scatter    *ScatterArgs
	ScatterM   *ScatterMArgs
	Gather     *GatherArgs
	GatherM    *GatherMArgs
	GatherAll  *GatherAllArgs
	GatherAllM *GatherAllMArgs
	Exchange   *ExchangeArgs
	ExchangeM  *ExchangeMArgs
}

// NBytes returns the per-image transfer size irrespective of which variant
// is tagged.
func (a *CollArgs) NBytes() int {
	switch a.Kind {
	case KindBroadcast:
		return a.Bcast.NBytes
	case KindBroadcastM:
		return a.BcastM.NBytes
	case KindScatter:
		return a.Scatter.NBytes
	case KindScatterM:
		return a.ScatterM.NBytes
	case KindGather:
		return a.Gather.NBytes
	case KindGatherM:
		return a.GatherM.NBytes
	case KindGatherAll:
		return a.GatherAll.NBytes
	case KindGatherAllM:
		return a.GatherAllM.NBytes
	case KindExchange:
		return a.Exchange.NBytes
	case KindExchangeM:
		return a.ExchangeM.NBytes
	default:
		panic(&ProtocolError{Message: "CollArgs.NBytes: unknown kind"})
	}
}

// RootImage returns the rooted image for algorithms that have one
// (broadcast/scatter/gather families); panics if asked of a rootless kind.
func (a *CollArgs) RootImage() int {
	switch a.Kind {
	case KindBroadcast:
		return a.Bcast.SrcImage
	case KindBroadcastM:
		return a.BcastM.SrcImage
	case KindScatter:
		return a.Scatter.RootImage
	case KindScatterM:
		return a.ScatterM.RootImage
	case KindGather:
		return a.Gather.RootImage
	case KindGatherM:
		return a.GatherM.RootImage
	default:
		panic(&ProtocolError{Message: "CollArgs.RootImage: kind has no root image: " + a.Kind.String()})
	}
}

// IsM reports whether this kind addresses a per-image destination/source
// list rather than a single shared buffer.
func (a *CollArgs) IsM() bool {
	switch a.Kind {
	case KindBroadcastM, KindScatterM, KindGatherM, KindGatherAllM, KindExchangeM:
		return true
	default:
		return false
	}
}
