package drmioctl

// These mirror the kernel's <drm/drm.h> and <drm/drm_mode.h> structures.
// Field order and widths must match the kernel ABI exactly; they are not
// Go-idiomatic by choice.

const (
	DisplayModeLen = 32
)

// ModeInfo is struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [DisplayModeLen]byte
}

// ModeCardRes is struct drm_mode_card_res, the top-level resource
// enumeration ioctl (DRM_IOCTL_MODE_GETRESOURCES).
type ModeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCrtcs     uint32
	CountConnectors uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

// ModeGetConnector is struct drm_mode_get_connector
// (DRM_IOCTL_MODE_GETCONNECTOR). This core does not enumerate modes or
// encoders (EDID parsing and mode timing discovery are out of scope);
// only the fields needed to know a connector's id and connection status
// are used.
type ModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MMWidth         uint32
	MMHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

// ModeGetPlaneRes is struct drm_mode_get_plane_res
// (DRM_IOCTL_MODE_GETPLANERESOURCES).
type ModeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
}

// ModeGetPlane is struct drm_mode_get_plane (DRM_IOCTL_MODE_GETPLANE).
type ModeGetPlane struct {
	PlaneID         uint32
	CrtcID          uint32
	FbID            uint32
	PossibleCrtcs   uint32
	GammaSize       uint32
	CountFormatTypes uint32
	FormatTypePtr   uint64
}

// ModeCrtc is struct drm_mode_crtc.
type ModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X, Y             uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

// ModeCrtcPageFlip is struct drm_mode_crtc_page_flip.
type ModeCrtcPageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

// ModeCursor2 is struct drm_mode_cursor2 (MoveCursor/SetCursor with hotspot).
type ModeCursor2 struct {
	Flags   uint32
	CrtcID  uint32
	X, Y    int32
	Width   uint32
	Height  uint32
	Handle  uint32
	HotX    int32
	HotY    int32
}

// ModeFbCmd2 is struct drm_mode_fb_cmd2 (AddFB2).
type ModeFbCmd2 struct {
	FbID       uint32
	Width      uint32
	Height     uint32
	PixelFmt   uint32
	Flags      uint32
	Handles    [4]uint32
	Pitches    [4]uint32
	Offsets    [4]uint32
	Modifier   [4]uint64
}

// ModeObjGetProperties is struct drm_mode_obj_get_properties.
type ModeObjGetProperties struct {
	PropsPtr       uint64
	PropValuesPtr  uint64
	CountProps     uint32
	ObjID          uint32
	ObjType        uint32
}

// ModeObjSetProperty is struct drm_mode_obj_set_property.
type ModeObjSetProperty struct {
	Value   uint64
	PropID  uint32
	ObjID   uint32
	ObjType uint32
}

// ModeGetProperty is struct drm_mode_get_property.
type ModeGetProperty struct {
	ValuesPtr   uint64
	EnumBlobPtr uint64
	PropID      uint32
	Flags       uint32
	Name        [32]byte
	CountValues uint32
	CountEnum   uint32
}

// ModePropertyEnum is struct drm_mode_property_enum.
type ModePropertyEnum struct {
	Value uint64
	Name  [32]byte
}

// ModeGetBlob is struct drm_mode_get_blob.
type ModeGetBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

// ModeCreateBlob is struct drm_mode_create_blob.
type ModeCreateBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

// ModeDestroyBlob is struct drm_mode_destroy_blob.
type ModeDestroyBlob struct {
	BlobID uint32
}

// ModeAtomic is struct drm_mode_atomic.
type ModeAtomic struct {
	Flags           uint32
	CountObjs       uint32
	ObjsPtr         uint64
	CountPropsPtr   uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	Reserved        uint64
	UserData        uint64
}

// CreateDumb is struct drm_mode_create_dumb.
type CreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// DestroyDumb is struct drm_mode_destroy_dumb.
type DestroyDumb struct {
	Handle uint32
}

// CrtcGamma is struct drm_mode_crtc_lut.
type CrtcGamma struct {
	CrtcID    uint32
	GammaSize uint32
	Red       uint64
	Green     uint64
	Blue      uint64
}

// GetCap is struct drm_get_cap.
type GetCap struct {
	Capability uint64
	Value      uint64
}

// SetClientCap is struct drm_set_client_cap.
type SetClientCap struct {
	Capability uint64
	Value      uint64
}

// Auth is struct drm_auth.
type Auth struct {
	Magic uint32
}

// Event is struct drm_event (the common header for all DRM events).
type Event struct {
	Type   uint32
	Length uint32
}

// EventVblank is struct drm_event_vblank, used for both legacy page-flip and
// vblank events.
type EventVblank struct {
	Base        Event
	UserData    uint64
	TvSec       uint32
	TvUsec      uint32
	Sequence    uint32
	CrtcID      uint32 // only valid for DRM_EVENT_CRTC_SEQUENCE/atomic flip2
}
