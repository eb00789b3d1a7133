package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DocumentType describes one controlled document type.
type DocumentType struct {
	Code       string
	Name       string
	Executable bool
	Singleton  bool
	// ParentType is set for child types; "*" accepts any executable parent.
	ParentType string
}

// AnyExecutableParent marks a child type that may hang off any executable document.
const AnyExecutableParent = "*"

var documentTypes = []DocumentType{
	{Code: "SOP", Name: "Standard Operating Procedure"},
	{Code: "RS", Name: "Requirements Specification", Singleton: true},
	{Code: "DS", Name: "Design Specification", Singleton: true},
	{Code: "CS", Name: "Configuration Specification", Singleton: true},
	{Code: "RTM", Name: "Requirements Traceability Matrix", Singleton: true},
	{Code: "OQ", Name: "Operational Qualification", Singleton: true},
	{Code: "TEMPLATE", Name: "Document Template"},
	{Code: "CR", Name: "Change Record", Executable: true},
	{Code: "INV", Name: "Investigation", Executable: true},
	{Code: "CAPA", Name: "Corrective and Preventive Action", Executable: true, ParentType: "INV"},
	{Code: "TP", Name: "Test Protocol", Executable: true, ParentType: "CR"},
	{Code: "ER", Name: "Exception Report", Executable: true, ParentType: "TP"},
	{Code: "VAR", Name: "Variance Report", Executable: true, ParentType: AnyExecutableParent},
}

// DocumentTypes returns the registry in declaration order.
func DocumentTypes() []DocumentType {
	return append([]DocumentType(nil), documentTypes...)
}

// LookupDocumentType finds a type by code, case-insensitively.
func LookupDocumentType(code string) (DocumentType, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, dt := range documentTypes {
		if dt.Code == code {
			return dt, true
		}
	}
	return DocumentType{}, false
}

// IsChild reports whether the type must be created under a parent.
func (dt DocumentType) IsChild() bool {
	return dt.ParentType != ""
}

// AcceptsParent reports whether parent is a valid parent type.
func (dt DocumentType) AcceptsParent(parent DocumentType) bool {
	if dt.ParentType == AnyExecutableParent {
		return parent.Executable
	}
	return dt.ParentType == parent.Code
}

// SingletonID returns the fixed ID of a singleton type.
func (dt DocumentType) SingletonID() string {
	return "SDLC-" + dt.Code
}

// FormatID builds the ID for the n-th document of this type, under parentID when set.
func (dt DocumentType) FormatID(parentID string, n int) string {
	if dt.Singleton {
		return dt.SingletonID()
	}
	if parentID != "" {
		return fmt.Sprintf("%s-%s-%03d", parentID, dt.Code, n)
	}
	return fmt.Sprintf("%s-%03d", dt.Code, n)
}

// IDPrefix returns the prefix shared by every ID FormatID produces for parentID.
func (dt DocumentType) IDPrefix(parentID string) string {
	if parentID != "" {
		return parentID + "-" + dt.Code + "-"
	}
	return dt.Code + "-"
}

var trailingNumber = regexp.MustCompile(`-(\d+)$`)

// SequenceNumber extracts the trailing sequence number of a document ID.
func SequenceNumber(id string) (int, bool) {
	m := trailingNumber.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
