package selection

import "sceneaoi/internal/geom"

// EventKind names an event on the wire and in logs.
type EventKind string

const (
	KindCreateStart     EventKind = "create.start"
	KindCreateActive    EventKind = "create.active"
	KindCreateCommit    EventKind = "create.commit"
	KindCreateCancel    EventKind = "create.cancel"
	KindUpdate          EventKind = "update.update"
	KindReshapeStart    EventKind = "reshape.start"
	KindReshapeActive   EventKind = "reshape.active"
	KindReshapeComplete EventKind = "reshape.complete"
	KindReshapeCancel   EventKind = "reshape.cancel"
	KindOriginStart     EventKind = "origin.start"
	KindOriginActive    EventKind = "origin.active"
	KindOriginComplete  EventKind = "origin.complete"
	KindOriginCancel    EventKind = "origin.cancel"
	KindExportStart     EventKind = "export.start"
	KindExportComplete  EventKind = "export.complete"
	KindExportFail      EventKind = "export.fail"
	KindReset           EventKind = "reset"
)

// Event is one input of the selection protocol.
type Event interface {
	Kind() EventKind
}

type (
	CreateStart  struct{}
	CreateActive struct{ Point geom.Point }
	CreateCommit struct{ Point geom.Point }
	CreateCancel struct{}

	// Update replaces the finished rectangle with the one spanned by
	// Origin and Terminal.
	Update struct{ Origin, Terminal geom.Point }

	ReshapeStart    struct{}
	ReshapeActive   struct{ Ring geom.Rectangle }
	ReshapeComplete struct{ Ring geom.Rectangle }
	ReshapeCancel   struct{}

	OriginStart    struct{}
	OriginActive   struct{ Point geom.Point }
	OriginComplete struct{ Point geom.Point }
	OriginCancel   struct{}

	// Export events carry the id of one export run. A completion or
	// failure only applies to the run that is still current.
	ExportStart    struct{ ID string }
	ExportComplete struct{ ID string }
	ExportFail     struct{ ID string }

	// Reset returns to the empty idle state for the given scene.
	Reset struct{ Scene string }
)

func (CreateStart) Kind() EventKind     { return KindCreateStart }
func (CreateActive) Kind() EventKind    { return KindCreateActive }
func (CreateCommit) Kind() EventKind    { return KindCreateCommit }
func (CreateCancel) Kind() EventKind    { return KindCreateCancel }
func (Update) Kind() EventKind          { return KindUpdate }
func (ReshapeStart) Kind() EventKind    { return KindReshapeStart }
func (ReshapeActive) Kind() EventKind   { return KindReshapeActive }
func (ReshapeComplete) Kind() EventKind { return KindReshapeComplete }
func (ReshapeCancel) Kind() EventKind   { return KindReshapeCancel }
func (OriginStart) Kind() EventKind     { return KindOriginStart }
func (OriginActive) Kind() EventKind    { return KindOriginActive }
func (OriginComplete) Kind() EventKind  { return KindOriginComplete }
func (OriginCancel) Kind() EventKind    { return KindOriginCancel }
func (ExportStart) Kind() EventKind     { return KindExportStart }
func (ExportComplete) Kind() EventKind  { return KindExportComplete }
func (ExportFail) Kind() EventKind      { return KindExportFail }
func (Reset) Kind() EventKind           { return KindReset }
