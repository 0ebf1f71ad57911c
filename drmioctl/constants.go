package drmioctl

import "unsafe"

// DRM_IOCTL_* opcodes, computed the same way the kernel header does via
// _IO/_IOR/_IOW/_IOWR, rather than hard-coded magic numbers.
const (
	nrVersion           = 0x00
	nrGetMagic          = 0x02
	nrGetCap            = 0x0c
	nrSetClientCap      = 0x0d
	nrSetMaster         = 0x1e
	nrDropMaster        = 0x1f
	nrAuthMagic         = 0x11
	nrModeGetResources  = 0xa0
	nrModeGetCrtc       = 0xa1
	nrModeSetCrtc       = 0xa2
	nrModeCursor        = 0xa3
	nrModeGetGamma      = 0xa4
	nrModeSetGamma      = 0xa5
	nrModeGetConnector  = 0xa7
	nrModeGetProperty   = 0xaa
	nrModeSetProperty   = 0xab // DRM_IOCTL_MODE_CONNECTOR_SETPROPERTY (legacy)
	nrModeGetPropBlob   = 0xac
	nrModeAddFB         = 0xae
	nrModePageFlip      = 0xb0
	nrModeCreateDumb    = 0xb2
	nrModeDestroyDumb   = 0xb4
	nrModeGetPlaneRes   = 0xb5
	nrModeGetPlane      = 0xb6
	nrModeObjGetProps   = 0xb9
	nrModeObjSetProp    = 0xba
	nrModeCursor2       = 0xbb
	nrModeAtomic        = 0xbc
	nrModeCreatePropBlob  = 0xbd
	nrModeDestroyPropBlob = 0xbe
	nrModeAddFB2        = 0xb8
)

var (
	opModeGetResources = iowr(nrModeGetResources, unsafe.Sizeof(ModeCardRes{}))
	opModeGetCrtc      = iowr(nrModeGetCrtc, unsafe.Sizeof(ModeCrtc{}))
	opModeGetConnector = iowr(nrModeGetConnector, unsafe.Sizeof(ModeGetConnector{}))
	opModeGetPlaneRes  = iowr(nrModeGetPlaneRes, unsafe.Sizeof(ModeGetPlaneRes{}))
	opModeGetPlane     = iowr(nrModeGetPlane, unsafe.Sizeof(ModeGetPlane{}))
	opGetCap          = iowr(nrGetCap, unsafe.Sizeof(GetCap{}))
	opSetClientCap    = iow(nrSetClientCap, unsafe.Sizeof(SetClientCap{}))
	opGetMagic        = ior(nrGetMagic, unsafe.Sizeof(Auth{}))
	opAuthMagic       = iow(nrAuthMagic, unsafe.Sizeof(Auth{}))
	opSetMaster       = io(nrSetMaster)
	opDropMaster      = io(nrDropMaster)
	opModeSetCrtc     = iowr(nrModeSetCrtc, unsafe.Sizeof(ModeCrtc{}))
	opModeCursor2     = iowr(nrModeCursor2, unsafe.Sizeof(ModeCursor2{}))
	opModeSetGamma    = iowr(nrModeSetGamma, unsafe.Sizeof(CrtcGamma{}))
	opModeGetProperty = iowr(nrModeGetProperty, unsafe.Sizeof(ModeGetProperty{}))
	opModeSetProperty = iowr(nrModeSetProperty, unsafe.Sizeof(modeConnectorSetProperty{}))
	opModeGetPropBlob = iowr(nrModeGetPropBlob, unsafe.Sizeof(ModeGetBlob{}))
	opModeCreatePropBlob  = iowr(nrModeCreatePropBlob, unsafe.Sizeof(ModeCreateBlob{}))
	opModeDestroyPropBlob = iowr(nrModeDestroyPropBlob, unsafe.Sizeof(ModeDestroyBlob{}))
	opModeAddFB2      = iowr(nrModeAddFB2, unsafe.Sizeof(ModeFbCmd2{}))
	opModePageFlip    = iowr(nrModePageFlip, unsafe.Sizeof(ModeCrtcPageFlip{}))
	opModeCreateDumb  = iowr(nrModeCreateDumb, unsafe.Sizeof(CreateDumb{}))
	opModeDestroyDumb = iowr(nrModeDestroyDumb, unsafe.Sizeof(DestroyDumb{}))
	opModeObjGetProps = iowr(nrModeObjGetProps, unsafe.Sizeof(ModeObjGetProperties{}))
	opModeObjSetProp  = iowr(nrModeObjSetProp, unsafe.Sizeof(ModeObjSetProperty{}))
	opModeAtomic      = iowr(nrModeAtomic, unsafe.Sizeof(ModeAtomic{}))
)

// modeConnectorSetProperty is struct drm_mode_connector_set_property, the
// legacy per-connector property write used by the Legacy Committer for DPMS.
type modeConnectorSetProperty struct {
	Value     uint64
	PropID    uint32
	ConnID    uint32
}

// Capability identifiers for DRM_IOCTL_GET_CAP (drm.h DRM_CAP_*).
const (
	CapDumbBuffer         = 0x1
	CapTimestampMonotonic = 0x6
	CapCursorWidth        = 0x8
	CapCursorHeight       = 0x9
	CapAddFB2Modifiers    = 0x10
	CapCrtcInVblankEvent  = 0x12
)

// Client capability identifiers for DRM_IOCTL_SET_CLIENT_CAP (drm.h
// DRM_CLIENT_CAP_*).
const (
	ClientCapAtomic                = 0x3
	ClientCapUniversalPlanes       = 0x2
	ClientCapAspectRatio           = 0x4
	ClientCapWritebackConnectors   = 0x5
)

// Object types for DRM_IOCTL_MODE_OBJ_GETPROPERTIES (drm_mode.h
// DRM_MODE_OBJECT_*).
const (
	ObjectCRTC      = 0xcccccccc
	ObjectConnector = 0xc0c0c0c0
	ObjectPlane     = 0xeeeeeeee
)

// Property flag bits (drm_mode.h DRM_MODE_PROP_*).
const (
	PropPending      = 1 << 0
	PropRange        = 1 << 1
	PropImmutable    = 1 << 2
	PropEnum         = 1 << 3
	PropBlob         = 1 << 4
	PropBitmask      = 1 << 5
	PropExtendedType = 0x0000ffc0
	PropObject       = 1 << 6
	PropSignedRange  = 1 << 7
)

// Atomic commit flags (drm_mode.h DRM_MODE_ATOMIC_* / page-flip flags).
const (
	ModeAtomicTestOnly  = 0x0100
	ModeAtomicNonblock  = 0x0200
	ModeAtomicAllowModeset = 0x0400
	ModePageFlipEvent   = 0x01
	ModePageFlipAsync   = 0x02
)

// DRM event types (drm.h DRM_EVENT_*).
const (
	EventVblankType = 0x01
	EventFlipComplete = 0x02
)

// DRM_FORMAT_MOD_* well-known modifiers.
const (
	FormatModLinear  uint64 = 0
	FormatModInvalid uint64 = 0x00ffffffffffffff
)

// DRM_MODE_DPMS_* connector DPMS enum kernel values (used only as a
// documentation aid; the actual kernel-assigned enum codes are discovered
// dynamically through the property registry, per spec).
const (
	DPMSOn      = 0
	DPMSStandby = 1
	DPMSSuspend = 2
	DPMSOff     = 3
)
