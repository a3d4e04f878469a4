package config

import (
	"fmt"
)

const (
	FogplacePackageName = "fogplace.io"
	CPULabelName        = "cpu"
	RAMLabelName        = "ram"
	LinksAnnotationName = "links"
	ComponentLabelName  = "component"
	ApplicationLabel    = "app"
)

// Node labels carrying host capacity, the node annotation describing its
// outgoing links, and the labels set on deployed components.
var CPULabel string
var RAMLabel string
var LinksAnnotation string
var ComponentLabel string
var ApplicationIDLabel string

func init() {
	CPULabel = fmt.Sprintf("%s/%s", FogplacePackageName, CPULabelName)
	RAMLabel = fmt.Sprintf("%s/%s", FogplacePackageName, RAMLabelName)
	LinksAnnotation = fmt.Sprintf("%s/%s", FogplacePackageName, LinksAnnotationName)
	ComponentLabel = fmt.Sprintf("%s/%s", FogplacePackageName, ComponentLabelName)
	ApplicationIDLabel = fmt.Sprintf("%s/%s", FogplacePackageName, ApplicationLabel)
}
