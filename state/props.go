package state

import "github.com/talonwl/kmscommit/property"

// Compile-time indices into a CRTC's property.Table. Only ACTIVE and
// MODE_ID are cached per spec.
const (
	CrtcPropModeID = iota
	CrtcPropActive
)

func crtcSpecs() []property.Spec {
	return []property.Spec{
		CrtcPropModeID: {Name: "MODE_ID"},
		CrtcPropActive: {Name: "ACTIVE"},
	}
}

// Compile-time indices into a Connector's property.Table.
const (
	ConnPropEDID = iota
	ConnPropDPMS
	ConnPropCrtcID
	ConnPropNonDesktop
	ConnPropContentProtection
	ConnPropHDCPContentType
	ConnPropPanelOrientation
	ConnPropHDROutputMetadata
	ConnPropMaxBPC
)

// DPMS enum variants, in kms.c's dpms_state_enums order. These are
// compile-time indices, not the kernel's DRM_MODE_DPMS_* codes; the
// registry resolves the kernel code for each name at Populate time.
const (
	DPMSOff = iota
	DPMSOn
	DPMSStandby
	DPMSSuspend
)

// ProtectionLevel enum variants (kms.c content_protection_enums).
const (
	ProtectionUndesired = iota
	ProtectionDesired
	ProtectionEnabled
)

// HDCP content-type enum variants (kms.c hdcp_content_type_enums).
const (
	HDCPContentType0 = iota
	HDCPContentType1
)

func connectorSpecs() []property.Spec {
	return []property.Spec{
		ConnPropEDID:              {Name: "EDID"},
		ConnPropDPMS:              {Name: "DPMS", EnumNames: []string{"Off", "On", "Standby", "Suspend"}},
		ConnPropCrtcID:            {Name: "CRTC_ID"},
		ConnPropNonDesktop:        {Name: "non-desktop"},
		ConnPropContentProtection: {Name: "Content Protection", EnumNames: []string{"Undesired", "Desired", "Enabled"}},
		ConnPropHDCPContentType:   {Name: "HDCP Content Type", EnumNames: []string{"HDCP Type0", "HDCP Type1"}},
		ConnPropPanelOrientation:  {Name: "panel orientation", EnumNames: []string{"Normal", "Upside Down", "Left Side Up", "Right Side Up"}},
		ConnPropHDROutputMetadata: {Name: "HDR_OUTPUT_METADATA"},
		ConnPropMaxBPC:            {Name: "max bpc"},
	}
}

// Compile-time indices into a Plane's property.Table.
const (
	PlanePropType = iota
	PlanePropSrcX
	PlanePropSrcY
	PlanePropSrcW
	PlanePropSrcH
	PlanePropCrtcX
	PlanePropCrtcY
	PlanePropCrtcW
	PlanePropCrtcH
	PlanePropFbID
	PlanePropCrtcID
	PlanePropInFormats
	PlanePropInFenceFD
	PlanePropFbDamageClips
	PlanePropZpos
)

// Kind enum variants for the plane "type" property (kms.c plane_type_enums).
const (
	PlanePrimary = iota
	PlaneOverlay
	PlaneCursor
)

func planeSpecs() []property.Spec {
	return []property.Spec{
		PlanePropType:          {Name: "type", EnumNames: []string{"Primary", "Overlay", "Cursor"}},
		PlanePropSrcX:          {Name: "SRC_X"},
		PlanePropSrcY:          {Name: "SRC_Y"},
		PlanePropSrcW:          {Name: "SRC_W"},
		PlanePropSrcH:          {Name: "SRC_H"},
		PlanePropCrtcX:         {Name: "CRTC_X"},
		PlanePropCrtcY:         {Name: "CRTC_Y"},
		PlanePropCrtcW:         {Name: "CRTC_W"},
		PlanePropCrtcH:         {Name: "CRTC_H"},
		PlanePropFbID:          {Name: "FB_ID"},
		PlanePropCrtcID:        {Name: "CRTC_ID"},
		PlanePropInFormats:     {Name: "IN_FORMATS"},
		PlanePropInFenceFD:     {Name: "IN_FENCE_FD"},
		PlanePropFbDamageClips: {Name: "FB_DAMAGE_CLIPS"},
		PlanePropZpos:          {Name: "zpos"},
	}
}
