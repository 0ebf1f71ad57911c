package drmioctl

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// GetCap issues DRM_IOCTL_GET_CAP for the given capability id.
func GetCap(fd uintptr, capability uint64) (uint64, error) {
	c := GetCap{Capability: capability}
	if _, err := ioctlPtr(fd, opGetCap, unsafe.Pointer(&c)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_GET_CAP(%#x): %w", capability, err)
	}

	return c.Value, nil
}

// SetClientCap issues DRM_IOCTL_SET_CLIENT_CAP.
func SetClientCap(fd uintptr, capability, value uint64) error {
	c := SetClientCap{Capability: capability, Value: value}
	if _, err := ioctlPtr(fd, opSetClientCap, unsafe.Pointer(&c)); err != nil {
		return fmt.Errorf("DRM_IOCTL_SET_CLIENT_CAP(%#x): %w", capability, err)
	}

	return nil
}

// GetMagic issues DRM_IOCTL_GET_MAGIC, the first step of DRM master
// reassertion.
func GetMagic(fd uintptr) (uint32, error) {
	a := Auth{}
	if _, err := ioctlPtr(fd, opGetMagic, unsafe.Pointer(&a)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_GET_MAGIC: %w", err)
	}

	return a.Magic, nil
}

// AuthMagic issues DRM_IOCTL_AUTH_MAGIC against a (possibly different) DRM
// file descriptor that holds master.
func AuthMagic(masterFd uintptr, magic uint32) error {
	a := Auth{Magic: magic}
	if _, err := ioctlPtr(masterFd, opAuthMagic, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("DRM_IOCTL_AUTH_MAGIC: %w", err)
	}

	return nil
}

// SetMaster issues DRM_IOCTL_SET_MASTER.
func SetMaster(fd uintptr) error {
	if _, err := Ioctl(fd, opSetMaster, 0); err != nil {
		return fmt.Errorf("DRM_IOCTL_SET_MASTER: %w", err)
	}

	return nil
}

// Resources is the device-wide object enumeration from
// DRM_IOCTL_MODE_GETRESOURCES, trimmed to the ids this core cares about
// (fb and encoder ids belong to external collaborators: buffer allocation
// and the EDID/mode-timing layer, respectively).
type Resources struct {
	CrtcIDs      []uint32
	ConnectorIDs []uint32
}

// GetResources issues DRM_IOCTL_MODE_GETRESOURCES, the standard two-pass
// idiom (size, then fill).
func GetResources(fd uintptr) (Resources, error) {
	var req ModeCardRes
	if _, err := ioctlPtr(fd, opModeGetResources, unsafe.Pointer(&req)); err != nil {
		return Resources{}, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES(size): %w", err)
	}

	crtcIDs := make([]uint32, req.CountCrtcs)
	connIDs := make([]uint32, req.CountConnectors)

	if len(crtcIDs) > 0 {
		req.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcIDs[0])))
	}
	if len(connIDs) > 0 {
		req.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connIDs[0])))
	}

	if _, err := ioctlPtr(fd, opModeGetResources, unsafe.Pointer(&req)); err != nil {
		return Resources{}, fmt.Errorf("DRM_IOCTL_MODE_GETRESOURCES(fill): %w", err)
	}

	return Resources{CrtcIDs: crtcIDs, ConnectorIDs: connIDs}, nil
}

// GetCrtcGammaSize issues DRM_IOCTL_MODE_GETCRTC and returns the CRTC's
// gamma LUT size, the only field of the legacy GETCRTC reply this core
// needs (mode/fb/position are superseded by the property-driven state
// model).
func GetCrtcGammaSize(fd uintptr, crtcID uint32) (uint32, error) {
	req := ModeCrtc{CrtcID: crtcID}
	if _, err := ioctlPtr(fd, opModeGetCrtc, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_MODE_GETCRTC(%d): %w", crtcID, err)
	}

	return req.GammaSize, nil
}

// ConnectorConnected issues DRM_IOCTL_MODE_GETCONNECTOR and reports
// whether the kernel considers the connector currently connected
// (connection==1, DRM_MODE_CONNECTED). Hotplug enumeration itself is out
// of scope; this is the one-shot query Populate's callers use to decide
// whether a newly (re)discovered connector is worth driving.
func ConnectorConnected(fd uintptr, connID uint32) (bool, error) {
	req := ModeGetConnector{ConnectorID: connID}
	if _, err := ioctlPtr(fd, opModeGetConnector, unsafe.Pointer(&req)); err != nil {
		return false, fmt.Errorf("DRM_IOCTL_MODE_GETCONNECTOR(%d): %w", connID, err)
	}

	return req.Connection == 1, nil
}

// PlaneInfo is the subset of DRM_IOCTL_MODE_GETPLANE's reply this core
// needs: the legacy format list (used as a fallback when IN_FORMATS or
// modifier support is unavailable) and gamma_size.
type PlaneInfo struct {
	PossibleCrtcs uint32
	GammaSize     uint32
	Formats       []uint32
}

// GetPlane issues DRM_IOCTL_MODE_GETPLANE.
func GetPlane(fd uintptr, planeID uint32) (PlaneInfo, error) {
	req := ModeGetPlane{PlaneID: planeID}
	if _, err := ioctlPtr(fd, opModeGetPlane, unsafe.Pointer(&req)); err != nil {
		return PlaneInfo{}, fmt.Errorf("DRM_IOCTL_MODE_GETPLANE(size, %d): %w", planeID, err)
	}

	formats := make([]uint32, req.CountFormatTypes)
	if len(formats) > 0 {
		req.FormatTypePtr = uint64(uintptr(unsafe.Pointer(&formats[0])))
	}

	if _, err := ioctlPtr(fd, opModeGetPlane, unsafe.Pointer(&req)); err != nil {
		return PlaneInfo{}, fmt.Errorf("DRM_IOCTL_MODE_GETPLANE(fill, %d): %w", planeID, err)
	}

	return PlaneInfo{PossibleCrtcs: req.PossibleCrtcs, GammaSize: req.GammaSize, Formats: formats}, nil
}

// GetPlaneResources issues DRM_IOCTL_MODE_GETPLANERESOURCES.
func GetPlaneResources(fd uintptr) ([]uint32, error) {
	var req ModeGetPlaneRes
	if _, err := ioctlPtr(fd, opModeGetPlaneRes, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANERESOURCES(size): %w", err)
	}

	ids := make([]uint32, req.CountPlanes)
	if len(ids) > 0 {
		req.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	}

	if _, err := ioctlPtr(fd, opModeGetPlaneRes, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPLANERESOURCES(fill): %w", err)
	}

	return ids, nil
}

// RawProperty is one (property id, value) pair as returned by
// DRM_IOCTL_MODE_OBJ_GETPROPERTIES.
type RawProperty struct {
	ID    uint32
	Value uint64
}

// ObjectGetProperties issues DRM_IOCTL_MODE_OBJ_GETPROPERTIES twice (once to
// size the arrays, once to fill them), the standard two-pass DRM ioctl
// idiom.
func ObjectGetProperties(fd uintptr, objID uint32, objType uint32) ([]RawProperty, error) {
	req := ModeObjGetProperties{ObjID: objID, ObjType: objType}
	if _, err := ioctlPtr(fd, opModeObjGetProps, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_OBJ_GETPROPERTIES(size, obj=%d): %w", objID, err)
	}

	if req.CountProps == 0 {
		return nil, nil
	}

	ids := make([]uint32, req.CountProps)
	values := make([]uint64, req.CountProps)
	req.PropsPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))

	if _, err := ioctlPtr(fd, opModeObjGetProps, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_OBJ_GETPROPERTIES(fill, obj=%d): %w", objID, err)
	}

	out := make([]RawProperty, req.CountProps)
	for i := range out {
		out[i] = RawProperty{ID: ids[i], Value: values[i]}
	}

	return out, nil
}

// PropertyMeta is the kernel's description of a single property definition,
// as returned by DRM_IOCTL_MODE_GETPROPERTY.
type PropertyMeta struct {
	ID          uint32
	Name        string
	Flags       uint32
	RangeValues []uint64
	EnumValues  []EnumValue
}

// EnumValue is one named enum slot as reported by the kernel.
type EnumValue struct {
	Name  string
	Value uint64
}

// GetProperty issues DRM_IOCTL_MODE_GETPROPERTY, resolving range bounds or
// enum name/value pairs depending on the property's flags.
func GetProperty(fd uintptr, propID uint32) (PropertyMeta, error) {
	req := ModeGetProperty{PropID: propID}
	if _, err := ioctlPtr(fd, opModeGetProperty, unsafe.Pointer(&req)); err != nil {
		return PropertyMeta{}, fmt.Errorf("DRM_IOCTL_MODE_GETPROPERTY(size, id=%d): %w", propID, err)
	}

	values := make([]uint64, req.CountValues)
	enums := make([]ModePropertyEnum, req.CountEnum)

	if req.CountValues > 0 {
		req.ValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if req.CountEnum > 0 {
		req.EnumBlobPtr = uint64(uintptr(unsafe.Pointer(&enums[0])))
	}

	if _, err := ioctlPtr(fd, opModeGetProperty, unsafe.Pointer(&req)); err != nil {
		return PropertyMeta{}, fmt.Errorf("DRM_IOCTL_MODE_GETPROPERTY(fill, id=%d): %w", propID, err)
	}

	meta := PropertyMeta{
		ID:    req.PropID,
		Name:  cString(req.Name[:]),
		Flags: req.Flags,
	}

	if meta.Flags&(PropRange|PropSignedRange) != 0 {
		meta.RangeValues = values
	}

	if meta.Flags&PropEnum != 0 {
		meta.EnumValues = make([]EnumValue, len(enums))
		for i, e := range enums {
			meta.EnumValues[i] = EnumValue{Name: cString(e.Name[:]), Value: e.Value}
		}
	}

	return meta, nil
}

func cString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}

	return string(b[:n])
}

// GetPropertyBlob issues DRM_IOCTL_MODE_GETPROPBLOB.
func GetPropertyBlob(fd uintptr, blobID uint32) ([]byte, error) {
	req := ModeGetBlob{BlobID: blobID}
	if _, err := ioctlPtr(fd, opModeGetPropBlob, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPBLOB(size, id=%d): %w", blobID, err)
	}

	if req.Length == 0 {
		return nil, nil
	}

	data := make([]byte, req.Length)
	req.Data = uint64(uintptr(unsafe.Pointer(&data[0])))

	if _, err := ioctlPtr(fd, opModeGetPropBlob, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("DRM_IOCTL_MODE_GETPROPBLOB(fill, id=%d): %w", blobID, err)
	}

	return data, nil
}

// CreatePropertyBlob issues DRM_IOCTL_MODE_CREATEPROPBLOB, returning the new
// blob's id.
func CreatePropertyBlob(fd uintptr, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("CreatePropertyBlob: empty blob")
	}

	req := ModeCreateBlob{
		Data:   uint64(uintptr(unsafe.Pointer(&data[0]))),
		Length: uint32(len(data)),
	}
	if _, err := ioctlPtr(fd, opModeCreatePropBlob, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("DRM_IOCTL_MODE_CREATEPROPBLOB: %w", err)
	}

	return req.BlobID, nil
}

// DestroyPropertyBlob issues DRM_IOCTL_MODE_DESTROYPROPBLOB.
func DestroyPropertyBlob(fd uintptr, blobID uint32) error {
	if blobID == 0 {
		return nil
	}

	req := ModeDestroyBlob{BlobID: blobID}
	if _, err := ioctlPtr(fd, opModeDestroyPropBlob, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_DESTROYPROPBLOB(%d): %w", blobID, err)
	}

	return nil
}

// AtomicRequest accumulates (object, property, value) triples for a single
// DRM_IOCTL_MODE_ATOMIC call. Property writes within one object need not be
// contiguous; the kernel groups by the objs/count_props arrays.
type AtomicRequest struct {
	objOrder []uint32
	byObj    map[uint32][][2]uint64 // objID -> list of (propID, value)
}

// NewAtomicRequest returns an empty request builder, mirroring
// drmModeAtomicAlloc.
func NewAtomicRequest() *AtomicRequest {
	return &AtomicRequest{byObj: make(map[uint32][][2]uint64)}
}

// AddProperty mirrors drmModeAtomicAddProperty.
func (r *AtomicRequest) AddProperty(objID, propID uint32, value uint64) {
	if _, ok := r.byObj[objID]; !ok {
		r.objOrder = append(r.objOrder, objID)
	}

	r.byObj[objID] = append(r.byObj[objID], [2]uint64{uint64(propID), value})
}

// Len reports how many objects carry at least one property write.
func (r *AtomicRequest) Len() int {
	return len(r.objOrder)
}

// Commit issues DRM_IOCTL_MODE_ATOMIC with the given flags.
func (r *AtomicRequest) Commit(fd uintptr, flags uint32, userData uint64) error {
	var objs []uint32
	var countProps []uint32
	var propIDs []uint32
	var propValues []uint64

	for _, obj := range r.objOrder {
		entries := r.byObj[obj]
		objs = append(objs, obj)
		countProps = append(countProps, uint32(len(entries)))

		for _, e := range entries {
			propIDs = append(propIDs, uint32(e[0]))
			propValues = append(propValues, e[1])
		}
	}

	req := ModeAtomic{
		Flags:     flags,
		CountObjs: uint32(len(objs)),
		UserData:  userData,
	}

	if len(objs) > 0 {
		req.ObjsPtr = uint64(uintptr(unsafe.Pointer(&objs[0])))
		req.CountPropsPtr = uint64(uintptr(unsafe.Pointer(&countProps[0])))
	}
	if len(propIDs) > 0 {
		req.PropsPtr = uint64(uintptr(unsafe.Pointer(&propIDs[0])))
		req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&propValues[0])))
	}

	if _, err := ioctlPtr(fd, opModeAtomic, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_ATOMIC(flags=%#x): %w", flags, err)
	}

	return nil
}

// SetCrtc issues DRM_IOCTL_MODE_SETCRTC.
func SetCrtc(fd uintptr, crtcID, fbID uint32, x, y uint32, connectors []uint32, mode *ModeInfo) error {
	req := ModeCrtc{CrtcID: crtcID, FbID: fbID, X: x, Y: y}

	if len(connectors) > 0 {
		req.SetConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
		req.CountConnectors = uint32(len(connectors))
	}

	if mode != nil {
		req.ModeValid = 1
		req.Mode = *mode
	}

	if _, err := ioctlPtr(fd, opModeSetCrtc, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_SETCRTC(crtc=%d): %w", crtcID, err)
	}

	return nil
}

// PageFlip issues DRM_IOCTL_MODE_PAGE_FLIP.
func PageFlip(fd uintptr, crtcID, fbID uint32, flags uint32, userData uint64) error {
	op := iowr(nrModePageFlip, unsafe.Sizeof(ModeCrtcPageFlip{}))
	req := ModeCrtcPageFlip{CrtcID: crtcID, FbID: fbID, Flags: flags, UserData: userData}
	if _, err := ioctlPtr(fd, op, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_PAGE_FLIP(crtc=%d): %w", crtcID, err)
	}

	return nil
}

// SetCursor issues DRM_IOCTL_MODE_CURSOR2 with handle=0 disabling the
// cursor, or a non-zero handle to show it.
func SetCursor(fd uintptr, crtcID, handle, width, height uint32) error {
	req := ModeCursor2{CrtcID: crtcID, Handle: handle, Width: width, Height: height, Flags: 0x01 /* DRM_MODE_CURSOR_BO */}
	if _, err := ioctlPtr(fd, opModeCursor2, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_CURSOR2(crtc=%d): %w", crtcID, err)
	}

	return nil
}

// MoveCursor repositions an already-shown cursor plane.
func MoveCursor(fd uintptr, crtcID uint32, x, y int32) error {
	req := ModeCursor2{CrtcID: crtcID, X: x, Y: y, Flags: 0x02 /* DRM_MODE_CURSOR_MOVE */}
	if _, err := ioctlPtr(fd, opModeCursor2, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_CURSOR2(move, crtc=%d): %w", crtcID, err)
	}

	return nil
}

// ConnectorSetProperty issues the legacy DRM_IOCTL_MODE_CONNECTOR_SETPROPERTY
// (used by the Legacy Committer to write DPMS).
func ConnectorSetProperty(fd uintptr, connID, propID uint32, value uint64) error {
	req := modeConnectorSetProperty{ConnID: connID, PropID: propID, Value: value}
	if _, err := ioctlPtr(fd, opModeSetProperty, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_CONNECTOR_SETPROPERTY(conn=%d, prop=%d): %w", connID, propID, err)
	}

	return nil
}

// CrtcSetGamma issues DRM_IOCTL_MODE_SETGAMMA.
func CrtcSetGamma(fd uintptr, crtcID uint32, red, green, blue []uint16) error {
	size := len(red)
	req := CrtcGamma{CrtcID: crtcID, GammaSize: uint32(size)}

	if size > 0 {
		req.Red = uint64(uintptr(unsafe.Pointer(&red[0])))
		req.Green = uint64(uintptr(unsafe.Pointer(&green[0])))
		req.Blue = uint64(uintptr(unsafe.Pointer(&blue[0])))
	}

	if _, err := ioctlPtr(fd, opModeSetGamma, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_SETGAMMA(crtc=%d): %w", crtcID, err)
	}

	return nil
}

// CreateDumbFB allocates a kernel "dumb" scanout buffer and registers a
// framebuffer object for it with AddFB2. Used only by test harnesses and
// cmd/kmsprobe, never by the commit core itself (real compositors import
// buffers via GBM/dmabuf, out of scope per spec).
func CreateDumbFB(fd uintptr, width, height, bpp uint32, pixelFmt uint32) (handle, fbID, pitch uint32, err error) {
	dumb := CreateDumb{Width: width, Height: height, Bpp: bpp}
	if _, err = ioctlPtr(fd, opModeCreateDumb, unsafe.Pointer(&dumb)); err != nil {
		return 0, 0, 0, fmt.Errorf("DRM_IOCTL_MODE_CREATE_DUMB: %w", err)
	}

	fb := ModeFbCmd2{
		Width:    width,
		Height:   height,
		PixelFmt: pixelFmt,
		Handles:  [4]uint32{dumb.Handle},
		Pitches:  [4]uint32{dumb.Pitch},
	}
	if _, err = ioctlPtr(fd, opModeAddFB2, unsafe.Pointer(&fb)); err != nil {
		return 0, 0, 0, fmt.Errorf("DRM_IOCTL_MODE_ADDFB2: %w", err)
	}

	return dumb.Handle, fb.FbID, dumb.Pitch, nil
}

// DestroyDumb releases a dumb buffer handle.
func DestroyDumb(fd uintptr, handle uint32) error {
	req := DestroyDumb{Handle: handle}
	if _, err := ioctlPtr(fd, opModeDestroyDumb, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("DRM_IOCTL_MODE_DESTROY_DUMB(%d): %w", handle, err)
	}

	return nil
}

// DecodeInFormatsBlob parses the kernel's struct drm_format_modifier_blob,
// returning the format list and, per format, the modifiers it supports.
func DecodeInFormatsBlob(blob []byte) (formats []uint32, modifiersByFormat map[uint32][]uint64, err error) {
	const hdrLen = 24
	if len(blob) < hdrLen {
		return nil, nil, fmt.Errorf("IN_FORMATS blob too short: %d bytes", len(blob))
	}

	// Header: version(u32), flags(u32), count_formats(u32),
	// formats_offset(u32), count_modifiers(u32), modifiers_offset(u32).
	formatsCount := binary.LittleEndian.Uint32(blob[8:12])
	formatsOffset := binary.LittleEndian.Uint32(blob[12:16])
	modifiersCount := binary.LittleEndian.Uint32(blob[16:20])
	modifiersOffset := binary.LittleEndian.Uint32(blob[20:24])

	formats = make([]uint32, formatsCount)
	for i := range formats {
		off := int(formatsOffset) + i*4
		if off+4 > len(blob) {
			return nil, nil, fmt.Errorf("IN_FORMATS blob: formats array truncated")
		}
		formats[i] = binary.LittleEndian.Uint32(blob[off : off+4])
	}

	modifiersByFormat = make(map[uint32][]uint64, len(formats))
	const modEntryLen = 24 // struct drm_format_modifier: formats(u64) + offset(u32) + pad(u32) + modifier(u64)

	for i := uint32(0); i < modifiersCount; i++ {
		off := int(modifiersOffset) + int(i)*modEntryLen
		if off+modEntryLen > len(blob) {
			return nil, nil, fmt.Errorf("IN_FORMATS blob: modifiers array truncated")
		}

		formatsMask := binary.LittleEndian.Uint64(blob[off : off+8])
		formatOffset := binary.LittleEndian.Uint32(blob[off+8 : off+12])
		modifier := binary.LittleEndian.Uint64(blob[off+16 : off+24])

		for bit := 0; bit < 64; bit++ {
			if formatsMask&(1<<uint(bit)) == 0 {
				continue
			}

			idx := int(formatOffset) + bit
			if idx < 0 || idx >= len(formats) {
				continue
			}

			f := formats[idx]
			modifiersByFormat[f] = append(modifiersByFormat[f], modifier)
		}
	}

	return formats, modifiersByFormat, nil
}
