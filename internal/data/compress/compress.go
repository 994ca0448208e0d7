package compress

// Level is a numeric compression level passed through to an engine.
// Engines map the 0..12 range onto their own settings.
type Level int

const (
	LevelNone Level = iota
	Level1
	Level2
	Level3
	Level4
	Level5
	Level6
	Level7
	Level8
	Level9
	Level10
	Level11
	Level12
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = Level6

// Clamp limits l to the supported range.
func (l Level) Clamp() Level {
	return min(max(l, LevelNone), Level12)
}

// Page is one output buffer handed to an engine. The engine sets Len to the
// number of bytes it wrote into Data.
type Page struct {
	Data []byte
	Len  int
}

// Bound is the worst-case output layout for compressing one tile.
type Bound struct {
	// PageSize is the capacity every output page must have.
	PageSize int

	// Pages is the number of output pages the engine may fill.
	Pages int
}

// Total returns the scratch space needed for all pages.
func (b Bound) Total() int {
	return b.PageSize * b.Pages
}

// Engine is a block codec that compresses one tile at a time.
//
// An Engine owns its workspace and is not safe for concurrent use.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string

	// Level returns the level the engine was created with.
	Level() Level

	// CompressBound reports the output layout needed for a tile of tileSize bytes.
	CompressBound(tileSize int) Bound

	// Compress compresses src into pages and returns the total bytes written.
	Compress(src []byte, pages []Page) (int, error)

	// Decompress decompresses the input pages into dst and returns the
	// number of bytes written. A stream that decodes cleanly but yields
	// fewer bytes than len(dst) is not an error at this level.
	Decompress(src [][]byte, dst []byte) (int, error)

	// Close releases the engine workspace.
	Close() error
}
