package functiontype

// Group is the closed set of function families the daemon reports for
// informational grouping, mirroring gd_determine_function_group's
// explicit switch rather than a map with a silent default.
type Group int

const (
	GroupSerial Group = iota
	GroupNet
	GroupPhonet
	GroupFFS
	GroupOther
)

func (g Group) String() string {
	switch g {
	case GroupSerial:
		return "serial"
	case GroupNet:
		return "net"
	case GroupPhonet:
		return "phonet"
	case GroupFFS:
		return "ffs"
	default:
		return "other"
	}
}

// DetermineGroup classifies a kernel function type name into its
// Group. The case list is exhaustive by kernel function family, not a
// lookup table with a fallback guess.
func DetermineGroup(name string) Group {
	switch name {
	case "gser", "acm", "obex":
		return GroupSerial
	case "ecm", "subset", "ncm", "eem", "rndis":
		return GroupNet
	case "phonet":
		return GroupPhonet
	case "ffs":
		return GroupFFS
	default:
		return GroupOther
	}
}
