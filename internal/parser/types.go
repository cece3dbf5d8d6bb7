package parser

// SymbolKind represents the type of code symbol
type SymbolKind int

const (
	SymbolFunction SymbolKind = iota
	SymbolMethod
	SymbolClass
	SymbolStruct
	SymbolInterface
	SymbolModule
	SymbolConstant
	SymbolVariable
	SymbolField
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolMethod:
		return "method"
	case SymbolClass:
		return "class"
	case SymbolStruct:
		return "struct"
	case SymbolInterface:
		return "interface"
	case SymbolModule:
		return "module"
	case SymbolConstant:
		return "const"
	case SymbolVariable:
		return "variable"
	case SymbolField:
		return "field"
	default:
		return "unknown"
	}
}

// CallSite captures a function/method invocation discovered inside a symbol body.
type CallSite struct {
	Name      string `json:"name"`
	Qualifier string `json:"qualifier,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Arity     int    `json:"arity,omitempty"`
	Line      int    `json:"line,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// Symbol represents a code symbol (function, class, etc.)
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Signature  string // e.g., "func(ctx context.Context, id string) (*User, error)"
	Line       int    // first line, 1-based
	EndLine    int    // last line, 1-based
	Doc        string // docstring/comment if available
	Exported   bool
	Calls      []CallSite
	Extends    []string // base classes / embedded interfaces
	Implements []string
}

// ImportRef is one import statement: the raw specifier and the names it binds.
type ImportRef struct {
	Source string
	Names  []string
}

// FileSymbols holds all symbols extracted from a single file
type FileSymbols struct {
	Path          string
	Language      string
	Symbols       []Symbol
	Imports       []ImportRef
	ImportAliases map[string]string // alias -> import target (module/package path, optionally module#symbol)
	Hash          string            // short content hash
}

// Exports returns the names of exported symbols in declaration order.
func (f *FileSymbols) Exports() []string {
	out := make([]string, 0)
	for _, sym := range f.Symbols {
		if sym.Exported {
			out = append(out, sym.Name)
		}
	}
	return out
}

// HeritageKind distinguishes class extension from interface implementation.
type HeritageKind string

const (
	HeritageExtends    HeritageKind = "extends"
	HeritageImplements HeritageKind = "implements"
)

// Heritage is one class/interface hierarchy edge declared in a file.
type Heritage struct {
	Symbol string
	Target string
	Kind   HeritageKind
}

// CallRef is one call from a symbol declared in the file to a named target.
type CallRef struct {
	From string
	To   string
}

// FileRelations is the hierarchy and call information of one file.
type FileRelations struct {
	Path     string
	Heritage []Heritage
	Calls    []CallRef
}

// ParseIssue captures non-fatal parser warnings/errors encountered while scanning files.
type ParseIssue struct {
	File     string `json:"file"`
	Language string `json:"language,omitempty"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}
