package kb

import (
	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

func abstractClass(name, parent string) model.ClassMetadata {
	return model.ClassMetadata{Name: name, Parent: parent, DisplayName: name, Abstract: true}
}

func concreteClass(name, parent, display string) model.ClassMetadata {
	return model.ClassMetadata{Name: name, Parent: parent, DisplayName: display}
}

// DefaultSDHClasses returns the class hierarchy the SDH module works with,
// parents before children.
func DefaultSDHClasses() []model.ClassMetadata {
	return []model.ClassMetadata{
		abstractClass(core.ClassInventoryObject, ""),

		abstractClass(core.ClassGenericCommunicationsElement, core.ClassInventoryObject),
		concreteClass("Router", core.ClassGenericCommunicationsElement, "Router"),
		concreteClass("ADM", core.ClassGenericCommunicationsElement, "Add-Drop Multiplexer"),
		concreteClass("DXC", core.ClassGenericCommunicationsElement, "Digital Cross-Connect"),

		abstractClass("GenericBoard", core.ClassInventoryObject),
		concreteClass("Slot", "GenericBoard", "Slot"),
		concreteClass("Board", "GenericBoard", "Board"),

		abstractClass(core.ClassGenericPort, core.ClassInventoryObject),
		concreteClass("OpticalPort", core.ClassGenericPort, "Optical Port"),
		concreteClass("ElectricalPort", core.ClassGenericPort, "Electrical Port"),

		abstractClass(core.ClassGenericLogicalConnection, core.ClassInventoryObject),

		abstractClass(core.ClassGenericSDHTransportLink, core.ClassGenericLogicalConnection),
		concreteClass("STM1", core.ClassGenericSDHTransportLink, "STM-1"),
		concreteClass("STM4", core.ClassGenericSDHTransportLink, "STM-4"),
		concreteClass("STM16", core.ClassGenericSDHTransportLink, "STM-16"),
		concreteClass("STM64", core.ClassGenericSDHTransportLink, "STM-64"),
		concreteClass("STM256", core.ClassGenericSDHTransportLink, "STM-256"),

		abstractClass(core.ClassGenericSDHContainerLink, core.ClassGenericLogicalConnection),
		abstractClass(core.ClassGenericSDHHighOrderContainer, core.ClassGenericSDHContainerLink),
		concreteClass("VC4", core.ClassGenericSDHHighOrderContainer, "VC-4"),
		concreteClass("VC4-4", core.ClassGenericSDHHighOrderContainer, "VC-4-4c"),
		concreteClass("VC4-16", core.ClassGenericSDHHighOrderContainer, "VC-4-16c"),
		concreteClass("VC4-64", core.ClassGenericSDHHighOrderContainer, "VC-4-64c"),
		abstractClass(core.ClassGenericSDHLowOrderContainer, core.ClassGenericSDHContainerLink),
		concreteClass("VC3", core.ClassGenericSDHLowOrderContainer, "VC-3"),
		concreteClass("VC12", core.ClassGenericSDHLowOrderContainer, "VC-12"),

		abstractClass(core.ClassGenericSDHTributaryLink, core.ClassGenericLogicalConnection),
		abstractClass(core.ClassGenericSDHHighOrderTributary, core.ClassGenericSDHTributaryLink),
		concreteClass("VC4TributaryLink", core.ClassGenericSDHHighOrderTributary, "VC-4 Tributary"),
		concreteClass("VC4-4TributaryLink", core.ClassGenericSDHHighOrderTributary, "VC-4-4c Tributary"),
		concreteClass("VC4-16TributaryLink", core.ClassGenericSDHHighOrderTributary, "VC-4-16c Tributary"),
		concreteClass("VC4-64TributaryLink", core.ClassGenericSDHHighOrderTributary, "VC-4-64c Tributary"),
		abstractClass(core.ClassGenericSDHLowOrderTributary, core.ClassGenericSDHTributaryLink),
		concreteClass("VC3TributaryLink", core.ClassGenericSDHLowOrderTributary, "VC-3 Tributary"),
		concreteClass("VC12TributaryLink", core.ClassGenericSDHLowOrderTributary, "VC-12 Tributary"),

		abstractClass(core.ClassGenericService, core.ClassInventoryObject),
		concreteClass(core.ClassGenericSDHService, core.ClassGenericService, "SDH Service"),
	}
}
