package languages

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/codeatlas-dev/codeatlas/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParser implements parsing for Go source files
type GoParser struct {
	parser *sitter.Parser
}

// NewGoParser creates a new Go parser
func NewGoParser() *GoParser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoParser{parser: p}
}

func (g *GoParser) Language() string {
	return "go"
}

func (g *GoParser) Extensions() []string {
	return []string{".go"}
}

func (g *GoParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	tree, err := g.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &parser.FileSymbols{
		Path:          filename,
		Language:      "go",
		Symbols:       make([]parser.Symbol, 0),
		Imports:       make([]parser.ImportRef, 0),
		ImportAliases: make(map[string]string),
	}

	root := tree.RootNode()
	g.extractSymbols(root, content, result)

	return result, nil
}

func (g *GoParser) extractSymbols(node *sitter.Node, content []byte, result *parser.FileSymbols) {
	switch node.Type() {
	case "function_declaration":
		sym := g.extractFunction(node, content)
		if sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "method_declaration":
		sym := g.extractMethod(node, content)
		if sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "type_declaration":
		syms := g.extractTypeDecl(node, content)
		result.Symbols = append(result.Symbols, syms...)
		return

	case "import_declaration":
		imports, aliases := g.extractImports(node, content)
		result.Imports = append(result.Imports, imports...)
		result.ImportAliases = mergeImportAliases(result.ImportAliases, aliases)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		g.extractSymbols(node.Child(i), content, result)
	}
}

func (g *GoParser) extractFunction(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	name := nameNode.Content(content)
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolFunction,
		Signature: g.buildFunctionSignature(node, content),
		Line:      start,
		EndLine:   end,
		Exported:  isExportedGoName(name),
		Calls:     g.extractCalls(node.ChildByFieldName("body"), content),
	}
}

func (g *GoParser) extractMethod(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	name := nameNode.Content(content)

	receiver := ""
	receiverNode := node.ChildByFieldName("receiver")
	if receiverNode != nil {
		receiver = receiverNode.Content(content)
	}
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolMethod,
		Signature: receiver + " " + g.buildFunctionSignature(node, content),
		Line:      start,
		EndLine:   end,
		Exported:  isExportedGoName(name),
		Calls:     g.extractCalls(node.ChildByFieldName("body"), content),
	}
}

func (g *GoParser) extractTypeDecl(node *sitter.Node, content []byte) []parser.Symbol {
	symbols := make([]parser.Symbol, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "type_spec" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		typeNode := child.ChildByFieldName("type")
		if nameNode == nil {
			continue
		}

		name := nameNode.Content(content)
		kind := parser.SymbolStruct
		var embedded []string
		if typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = parser.SymbolStruct
				embedded = g.embeddedFields(typeNode, content)
			case "interface_type":
				kind = parser.SymbolInterface
				embedded = g.embeddedInterfaces(typeNode, content)
			}
		}
		start, end := lineSpan(child)

		symbols = append(symbols, parser.Symbol{
			Name:      name,
			Kind:      kind,
			Signature: g.buildTypeSignature(child, content),
			Line:      start,
			EndLine:   end,
			Exported:  isExportedGoName(name),
			Extends:   embedded,
		})
	}

	return symbols
}

// embeddedFields lists the types embedded in a struct (fields without a name).
func (g *GoParser) embeddedFields(structNode *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(structNode.NamedChildCount()); i++ {
		list := structNode.NamedChild(i)
		if list.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			field := list.NamedChild(j)
			if field.Type() != "field_declaration" || field.ChildByFieldName("name") != nil {
				continue
			}
			if typeNode := field.ChildByFieldName("type"); typeNode != nil {
				out = append(out, typeNames(typeNode.Content(content))...)
			}
		}
	}
	return out
}

func (g *GoParser) embeddedInterfaces(ifaceNode *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(ifaceNode.NamedChildCount()); i++ {
		child := ifaceNode.NamedChild(i)
		switch child.Type() {
		case "type_elem", "interface_type_name", "constraint_elem", "type_identifier", "qualified_type":
			out = append(out, typeNames(child.Content(content))...)
		}
	}
	return out
}

func (g *GoParser) extractImports(node *sitter.Node, content []byte) ([]parser.ImportRef, map[string]string) {
	imports := make([]parser.ImportRef, 0)
	aliases := make(map[string]string)

	add := func(spec *sitter.Node) {
		importPath, alias := g.readImportSpec(spec, content)
		if importPath == "" {
			return
		}
		ref := parser.ImportRef{Source: importPath}
		if alias != "" {
			aliases[alias] = importPath
			ref.Names = []string{alias}
		}
		imports = append(imports, ref)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			add(child)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "import_spec" {
					add(spec)
				}
			}
		}
	}

	return imports, aliases
}

func (g *GoParser) buildFunctionSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	resultNode := node.ChildByFieldName("result")

	sig := "func"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if resultNode != nil {
		sig += " " + resultNode.Content(content)
	}

	return sig
}

func (g *GoParser) buildTypeSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	typeNode := node.ChildByFieldName("type")

	if nameNode == nil {
		return ""
	}

	sig := "type " + nameNode.Content(content)
	if typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			sig += " struct"
		case "interface_type":
			sig += " interface"
		default:
			sig += " " + typeNode.Content(content)
		}
	}

	return sig
}

func (g *GoParser) extractCalls(bodyNode *sitter.Node, content []byte) []parser.CallSite {
	if bodyNode == nil {
		return nil
	}

	calls := make([]parser.CallSite, 0)
	g.collectCalls(bodyNode, content, &calls)
	return calls
}

func (g *GoParser) collectCalls(node *sitter.Node, content []byte, calls *[]parser.CallSite) {
	if node == nil {
		return
	}

	if node.Type() == "call_expression" {
		callSite := g.extractCallSite(node, content)
		if callSite.Name != "" {
			*calls = append(*calls, callSite)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		g.collectCalls(node.Child(i), content, calls)
	}
}

func (g *GoParser) extractCallSite(callNode *sitter.Node, content []byte) parser.CallSite {
	fnNode := callNode.ChildByFieldName("function")
	name, qualifier := g.extractCallName(fnNode, content)
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
	if qualifier != "" {
		callSite.Receiver = qualifier
	}
	return callSite
}

func (g *GoParser) extractCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "selector_expression":
		operandNode := node.ChildByFieldName("operand")
		fieldNode := node.ChildByFieldName("field")
		if fieldNode != nil {
			qualifierValue := ""
			if operandNode != nil {
				qualifierValue = strings.TrimSpace(operandNode.Content(content))
			}
			return fieldNode.Content(content), qualifierValue
		}
	case "parenthesized_expression":
		return g.extractCallName(node.ChildByFieldName("expression"), content)
	case "index_expression", "type_instantiation_expression":
		return g.extractCallName(node.ChildByFieldName("operand"), content)
	}

	qualifierValue, nameValue := splitQualifiedName(node.Content(content))
	return nameValue, qualifierValue
}

func (g *GoParser) readImportSpec(spec *sitter.Node, content []byte) (importPath, alias string) {
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return "", ""
	}

	importPath = strings.Trim(strings.TrimSpace(pathNode.Content(content)), "\"`")

	if aliasNode := spec.ChildByFieldName("name"); aliasNode != nil {
		alias = strings.TrimSpace(aliasNode.Content(content))
	}
	if alias == "_" || alias == "." {
		alias = ""
	}
	if alias == "" {
		alias = defaultImportAlias(importPath)
	}
	return importPath, alias
}

func isExportedGoName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
