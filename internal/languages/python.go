package languages

import (
	"context"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser implements parsing for Python source files
type PythonParser struct {
	parser *sitter.Parser
}

// NewPythonParser creates a new Python parser
func NewPythonParser() *PythonParser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonParser{parser: p}
}

func (p *PythonParser) Language() string {
	return "python"
}

func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyw"}
}

func (p *PythonParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &parser.FileSymbols{
		Path:          filename,
		Language:      "python",
		Symbols:       make([]parser.Symbol, 0),
		Imports:       make([]parser.ImportRef, 0),
		ImportAliases: make(map[string]string),
	}

	p.extractSymbols(tree.RootNode(), content, result, "")

	return result, nil
}

func (p *PythonParser) extractSymbols(node *sitter.Node, content []byte, result *parser.FileSymbols, className string) {
	switch node.Type() {
	case "function_definition":
		if sym := p.extractFunction(node, content, className); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		// nested functions are not symbols
		return

	case "class_definition":
		sym := p.extractClass(node, content)
		if sym == nil {
			return
		}
		sym.Exported = className == "" && !strings.HasPrefix(sym.Name, "_")
		result.Symbols = append(result.Symbols, *sym)
		if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
			for i := 0; i < int(bodyNode.ChildCount()); i++ {
				p.extractSymbols(bodyNode.Child(i), content, result, sym.Name)
			}
		}
		return

	case "import_statement":
		imports, aliases := p.extractImport(node, content)
		result.Imports = append(result.Imports, imports...)
		result.ImportAliases = mergeImportAliases(result.ImportAliases, aliases)
		return

	case "import_from_statement":
		imports, aliases := p.extractFromImport(node, content)
		result.Imports = append(result.Imports, imports...)
		result.ImportAliases = mergeImportAliases(result.ImportAliases, aliases)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.extractSymbols(node.Child(i), content, result, className)
	}
}

func (p *PythonParser) extractFunction(node *sitter.Node, content []byte, className string) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	name := nameNode.Content(content)
	kind := parser.SymbolFunction
	if className != "" {
		kind = parser.SymbolMethod
	}
	bodyNode := node.ChildByFieldName("body")
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      name,
		Kind:      kind,
		Signature: p.buildFunctionSignature(node, content),
		Line:      start,
		EndLine:   end,
		Doc:       leadingDocstring(bodyNode, content),
		Exported:  className == "" && !strings.HasPrefix(name, "_"),
		Calls:     p.extractCalls(bodyNode, content),
	}
}

func (p *PythonParser) extractClass(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	start, end := lineSpan(node)

	sym := &parser.Symbol{
		Name:      nameNode.Content(content),
		Kind:      parser.SymbolClass,
		Signature: p.buildClassSignature(node, content),
		Line:      start,
		EndLine:   end,
		Doc:       leadingDocstring(node.ChildByFieldName("body"), content),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(i)
			if arg.Type() == "keyword_argument" {
				continue
			}
			for _, name := range typeNames(arg.Content(content)) {
				if name == "object" {
					continue
				}
				sym.Extends = append(sym.Extends, name)
			}
		}
	}
	return sym
}

func (p *PythonParser) extractImport(node *sitter.Node, content []byte) ([]parser.ImportRef, map[string]string) {
	imports := make([]parser.ImportRef, 0)
	aliases := make(map[string]string)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			module := strings.TrimSpace(child.Content(content))
			if module != "" {
				alias := defaultImportAlias(strings.ReplaceAll(module, ".", "/"))
				imports = append(imports, parser.ImportRef{Source: module, Names: []string{alias}})
				aliases[alias] = module
			}
		case "aliased_import":
			module, alias := parsePythonAliasedImport(child.Content(content))
			if module == "" {
				continue
			}
			imports = append(imports, parser.ImportRef{Source: module, Names: []string{alias}})
			if alias != "" {
				aliases[alias] = module
			}
		}
	}
	return imports, aliases
}

func (p *PythonParser) extractFromImport(node *sitter.Node, content []byte) ([]parser.ImportRef, map[string]string) {
	aliases := make(map[string]string)
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil, aliases
	}
	moduleName := strings.TrimSpace(moduleNode.Content(content))
	if moduleName == "" {
		return nil, aliases
	}

	names := make([]string, 0)
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		child := node.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "aliased_import":
			importedName := ""
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				importedName = strings.TrimSpace(nameNode.Content(content))
			}
			aliasName := ""
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				aliasName = strings.TrimSpace(aliasNode.Content(content))
			}
			if aliasName != "" && importedName != "" {
				aliases[aliasName] = fromImportAliasTarget(moduleName, importedName)
				names = append(names, importedName)
			}
		case "dotted_name", "identifier":
			importedName := strings.TrimSpace(child.Content(content))
			if importedName != "" {
				aliases[importedName] = fromImportAliasTarget(moduleName, importedName)
				names = append(names, importedName)
			}
		}
	}

	// "from . import views" refers to the sibling module, not the package
	if strings.Trim(moduleName, ".") == "" && len(names) > 0 {
		refs := make([]parser.ImportRef, 0, len(names))
		for _, name := range names {
			refs = append(refs, parser.ImportRef{Source: PythonModuleSpec(moduleName + name), Names: []string{name}})
		}
		return refs, aliases
	}

	return []parser.ImportRef{{Source: PythonModuleSpec(moduleName), Names: names}}, aliases
}

// PythonModuleSpec rewrites a relative module reference (".models",
// "..core.db") into a path specifier ("./models", "../core/db"). Absolute
// dotted names are returned unchanged.
func PythonModuleSpec(module string) string {
	if !strings.HasPrefix(module, ".") {
		return module
	}
	dots := len(module) - len(strings.TrimLeft(module, "."))
	rest := strings.ReplaceAll(module[dots:], ".", "/")
	prefix := "./"
	if dots > 1 {
		prefix = strings.Repeat("../", dots-1)
	}
	if rest == "" {
		return strings.TrimSuffix(prefix, "/")
	}
	return prefix + rest
}

func (p *PythonParser) buildFunctionSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	returnNode := node.ChildByFieldName("return_type")

	sig := "def"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if returnNode != nil {
		sig += " -> " + returnNode.Content(content)
	}

	return sig
}

func (p *PythonParser) buildClassSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	superclassNode := node.ChildByFieldName("superclasses")

	sig := "class"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if superclassNode != nil {
		sig += superclassNode.Content(content)
	}

	return sig
}

func (p *PythonParser) extractCalls(bodyNode *sitter.Node, content []byte) []parser.CallSite {
	if bodyNode == nil {
		return nil
	}

	calls := make([]parser.CallSite, 0)
	p.collectCalls(bodyNode, content, &calls)
	return calls
}

func (p *PythonParser) collectCalls(node *sitter.Node, content []byte, calls *[]parser.CallSite) {
	if node == nil {
		return
	}

	if node.Type() == "call" {
		if callSite := p.extractCallSite(node, content); callSite.Name != "" {
			*calls = append(*calls, callSite)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.collectCalls(node.Child(i), content, calls)
	}
}

func (p *PythonParser) extractCallSite(callNode *sitter.Node, content []byte) parser.CallSite {
	fnNode := callNode.ChildByFieldName("function")
	name, qualifier := p.extractCallName(fnNode, content)
	callSite := parser.CallSite{
		Name:      name,
		Qualifier: qualifier,
		Line:      int(callNode.StartPoint().Row) + 1,
	}
	if args := callNode.ChildByFieldName("arguments"); args != nil {
		callSite.Arity = int(args.NamedChildCount())
	}
	if fnNode != nil {
		callSite.Raw = strings.TrimSpace(fnNode.Content(content))
	}
	if qualifier == "self" || qualifier == "cls" {
		callSite.Receiver = qualifier
	}
	return callSite
}

func (p *PythonParser) extractCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "attribute":
		object := node.ChildByFieldName("object")
		attr := node.ChildByFieldName("attribute")
		if attr != nil {
			qualifierValue := ""
			if object != nil {
				qualifierValue = strings.TrimSpace(object.Content(content))
			}
			return attr.Content(content), qualifierValue
		}
	case "parenthesized_expression":
		return p.extractCallName(node.ChildByFieldName("expression"), content)
	case "subscript":
		return p.extractCallName(node.ChildByFieldName("value"), content)
	}

	qualifierValue, nameValue := splitQualifiedName(node.Content(content))
	return nameValue, qualifierValue
}

func leadingDocstring(bodyNode *sitter.Node, content []byte) string {
	if bodyNode == nil || bodyNode.ChildCount() == 0 {
		return ""
	}
	firstStmt := bodyNode.Child(0)
	if firstStmt.Type() != "expression_statement" || firstStmt.ChildCount() == 0 {
		return ""
	}
	expr := firstStmt.Child(0)
	if expr.Type() != "string" {
		return ""
	}
	return extractDocstring(expr.Content(content))
}

func parsePythonAliasedImport(raw string) (module, alias string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	module, alias = splitAliasByAs(raw)
	if alias == "" {
		alias = defaultImportAlias(module)
	}
	return module, alias
}

func fromImportAliasTarget(moduleName, symbolName string) string {
	moduleName = strings.TrimSpace(moduleName)
	symbolName = strings.TrimSpace(symbolName)
	if moduleName == "" {
		return ""
	}
	if symbolName == "" {
		return moduleName
	}
	return moduleName + "#" + symbolName
}

func extractDocstring(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	} else if strings.HasPrefix(s, `'''`) && strings.HasSuffix(s, `'''`) && len(s) >= 6 {
		s = s[3 : len(s)-3]
	}
	// first line only
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
