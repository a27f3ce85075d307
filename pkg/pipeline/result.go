package pipeline

import "fmt"

// Result kinds produced by the built-in actions.
const (
	KindInitial          = "initial"
	KindRawData          = "raw_data"
	KindDecodedImage     = "decoded_image"
	KindDecompressedData = "decompressed_data"
	KindJSONObject       = "json_object"
	KindError            = "error"
)

// Status is the numeric outcome of an action. Zero means success.
type Status int

const (
	StatusOK                Status = 0
	StatusUnsupportedScheme Status = 1
	StatusFetchFailure      Status = 2
	StatusTransformFailure  Status = 3
	StatusCancelled         Status = 4
	StatusUnknownAction     Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnsupportedScheme:
		return "unsupported_scheme"
	case StatusFetchFailure:
		return "fetch_failure"
	case StatusTransformFailure:
		return "transform_failure"
	case StatusCancelled:
		return "cancelled"
	case StatusUnknownAction:
		return "unknown_action"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Payload is the closed set of values a Result can carry. Consumers are
// expected to type-switch over the concrete types below.
type Payload interface {
	payload()
}

// Empty is the payload of the initial Result.
type Empty struct{}

// RawBytes is the output of a load.
type RawBytes []byte

// DecodedImage describes an image whose header has been decoded.
type DecodedImage struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// ArchiveEntry is a single member of a decompressed archive.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// DecompressedData is the output of an archive decompression.
type DecompressedData struct {
	Format  string
	Entries []ArchiveEntry
}

// StructuredValue holds a parsed document (maps, slices, strings, float64,
// bool, nil).
type StructuredValue struct {
	Value any
}

// ErrorMarker is the payload of a failing Result.
type ErrorMarker struct {
	Err error
}

func (Empty) payload()            {}
func (RawBytes) payload()         {}
func (DecodedImage) payload()     {}
func (DecompressedData) payload() {}
func (StructuredValue) payload()  {}
func (ErrorMarker) payload()      {}

// Result is the value passed from one action to the next.
type Result struct {
	Kind    string
	Payload Payload
	Status  Status
}

// InitialResult is the carried Result of a pipeline that has not run yet.
func InitialResult() Result {
	return Result{Kind: KindInitial, Payload: Empty{}}
}

// Succeed builds a successful Result.
func Succeed(kind string, p Payload) Result {
	return Result{Kind: kind, Payload: p, Status: StatusOK}
}

// Fail builds a failing Result. A zero status is promoted to
// StatusTransformFailure so a failure can never be mistaken for success.
func Fail(status Status, err error) Result {
	if status == StatusOK {
		status = StatusTransformFailure
	}
	return Result{Kind: KindError, Payload: ErrorMarker{Err: err}, Status: status}
}

// OK reports whether the Result is a success.
func (r Result) OK() bool { return r.Status == StatusOK }

// Err returns the error carried by a failing Result, or nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	if m, ok := r.Payload.(ErrorMarker); ok && m.Err != nil {
		return m.Err
	}
	return fmt.Errorf("action failed with status %d", int(r.Status))
}
