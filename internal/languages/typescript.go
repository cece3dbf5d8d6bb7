package languages

import (
	"context"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/parser"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParser implements parsing for TypeScript/JavaScript source files
type TypeScriptParser struct {
	tsParser  *sitter.Parser
	tsxParser *sitter.Parser
	jsParser  *sitter.Parser
}

// NewTypeScriptParser creates a new TypeScript/JavaScript parser
func NewTypeScriptParser() *TypeScriptParser {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())

	tsxp := sitter.NewParser()
	tsxp.SetLanguage(tsx.GetLanguage())

	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())

	return &TypeScriptParser{
		tsParser:  ts,
		tsxParser: tsxp,
		jsParser:  js,
	}
}

func (t *TypeScriptParser) Language() string {
	return "typescript"
}

func (t *TypeScriptParser) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

func (t *TypeScriptParser) Parse(filename string, content []byte) (*parser.FileSymbols, error) {
	p := t.tsParser
	lang := "typescript"
	switch {
	case strings.HasSuffix(filename, ".tsx"):
		p = t.tsxParser
	case strings.HasSuffix(filename, ".js"), strings.HasSuffix(filename, ".jsx"),
		strings.HasSuffix(filename, ".mjs"), strings.HasSuffix(filename, ".cjs"):
		p = t.jsParser
		lang = "javascript"
	}

	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &parser.FileSymbols{
		Path:          filename,
		Language:      lang,
		Symbols:       make([]parser.Symbol, 0),
		Imports:       make([]parser.ImportRef, 0),
		ImportAliases: make(map[string]string),
	}

	t.extractSymbols(tree.RootNode(), content, result, "", false)

	return result, nil
}

func (t *TypeScriptParser) extractSymbols(node *sitter.Node, content []byte, result *parser.FileSymbols, className string, exported bool) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if sym := t.extractFunction(node, content); sym != nil {
			sym.Exported = exported
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "method_definition":
		if sym := t.extractMethod(node, content); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "class_declaration", "abstract_class_declaration":
		sym := t.extractClass(node, content)
		if sym == nil {
			return
		}
		sym.Exported = exported
		result.Symbols = append(result.Symbols, *sym)
		if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
			for i := 0; i < int(bodyNode.ChildCount()); i++ {
				t.extractSymbols(bodyNode.Child(i), content, result, sym.Name, false)
			}
		}
		return

	case "interface_declaration":
		if sym := t.extractInterface(node, content); sym != nil {
			sym.Exported = exported
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "type_alias_declaration":
		if sym := t.extractTypeAlias(node, content); sym != nil {
			sym.Exported = exported
			result.Symbols = append(result.Symbols, *sym)
		}
		return

	case "lexical_declaration", "variable_declaration":
		for _, sym := range t.extractVariableDeclarations(node, content, className == "") {
			sym.Exported = exported
			result.Symbols = append(result.Symbols, sym)
		}
		return

	case "export_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			t.extractSymbols(node.Child(i), content, result, className, true)
		}
		if source := node.ChildByFieldName("source"); source != nil {
			// re-export: export { x } from './y'
			spec := unquote(source.Content(content))
			result.Imports = append(result.Imports, parser.ImportRef{Source: spec})
		}
		return

	case "import_statement":
		imports, aliases := t.extractImports(node, content)
		result.Imports = append(result.Imports, imports...)
		result.ImportAliases = mergeImportAliases(result.ImportAliases, aliases)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		t.extractSymbols(node.Child(i), content, result, className, false)
	}
}

func (t *TypeScriptParser) extractFunction(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      nameNode.Content(content),
		Kind:      parser.SymbolFunction,
		Signature: t.buildFunctionSignature(node, content),
		Line:      start,
		EndLine:   end,
		Calls:     t.extractCalls(node.ChildByFieldName("body"), content),
	}
}

func (t *TypeScriptParser) extractMethod(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      nameNode.Content(content),
		Kind:      parser.SymbolMethod,
		Signature: t.buildMethodSignature(node, content),
		Line:      start,
		EndLine:   end,
		Calls:     t.extractCalls(node.ChildByFieldName("body"), content),
	}
}

func (t *TypeScriptParser) extractClass(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	start, end := lineSpan(node)
	sym := &parser.Symbol{
		Name:      nameNode.Content(content),
		Kind:      parser.SymbolClass,
		Signature: "class " + nameNode.Content(content),
		Line:      start,
		EndLine:   end,
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "class_heritage" {
			continue
		}
		heritage := child.Content(content)
		sym.Signature += " " + heritage
		sym.Extends, sym.Implements = parseClassHeritage(heritage)
		break
	}

	return sym
}

func (t *TypeScriptParser) extractInterface(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)
	start, end := lineSpan(node)
	sym := &parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolInterface,
		Signature: "interface " + name,
		Line:      start,
		EndLine:   end,
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "extends_type_clause" || child.Type() == "extends_clause" {
			raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(child.Content(content)), "extends"))
			sym.Extends = typeNames(raw)
		}
	}
	return sym
}

func (t *TypeScriptParser) extractTypeAlias(node *sitter.Node, content []byte) *parser.Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(content)
	start, end := lineSpan(node)

	return &parser.Symbol{
		Name:      name,
		Kind:      parser.SymbolStruct,
		Signature: "type " + name,
		Line:      start,
		EndLine:   end,
	}
}

// extractVariableDeclarations keeps arrow functions and function expressions;
// plain module-level constants are kept as variables.
func (t *TypeScriptParser) extractVariableDeclarations(node *sitter.Node, content []byte, topLevel bool) []parser.Symbol {
	symbols := make([]parser.Symbol, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := nameNode.Content(content)
		start, end := lineSpan(child)

		if valueNode != nil && (valueNode.Type() == "arrow_function" || valueNode.Type() == "function" || valueNode.Type() == "function_expression") {
			symbols = append(symbols, parser.Symbol{
				Name:      name,
				Kind:      parser.SymbolFunction,
				Signature: t.buildArrowFunctionSignature(nameNode, valueNode, content),
				Line:      start,
				EndLine:   end,
				Calls:     t.extractCalls(valueNode, content),
			})
			continue
		}
		if !topLevel {
			continue
		}
		sym := parser.Symbol{
			Name:    name,
			Kind:    parser.SymbolVariable,
			Line:    start,
			EndLine: end,
		}
		if valueNode != nil {
			sym.Calls = t.extractCalls(valueNode, content)
		}
		symbols = append(symbols, sym)
	}

	return symbols
}

func (t *TypeScriptParser) extractImports(node *sitter.Node, content []byte) ([]parser.ImportRef, map[string]string) {
	imports := make([]parser.ImportRef, 0)
	aliases := make(map[string]string)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "string" {
			continue
		}
		imp := unquote(child.Content(content))
		names := parseJSImportAliases(node.Content(content))
		imports = append(imports, parser.ImportRef{Source: imp, Names: names})

		for _, alias := range names {
			aliases[alias] = imp
		}
		if defaultAlias := defaultImportAlias(imp); defaultAlias != "" {
			if _, ok := aliases[defaultAlias]; !ok {
				aliases[defaultAlias] = imp
			}
		}
	}

	return imports, aliases
}

func (t *TypeScriptParser) buildFunctionSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	returnNode := node.ChildByFieldName("return_type")

	sig := "function"
	if nameNode != nil {
		sig += " " + nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if returnNode != nil {
		sig += formatTypeScriptReturnType(returnNode.Content(content))
	}

	return sig
}

func (t *TypeScriptParser) buildMethodSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	paramsNode := node.ChildByFieldName("parameters")
	returnNode := node.ChildByFieldName("return_type")

	sig := ""
	if nameNode != nil {
		sig = nameNode.Content(content)
	}
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	if returnNode != nil {
		sig += formatTypeScriptReturnType(returnNode.Content(content))
	}

	return sig
}

func (t *TypeScriptParser) buildArrowFunctionSignature(nameNode, valueNode *sitter.Node, content []byte) string {
	paramsNode := valueNode.ChildByFieldName("parameters")
	returnNode := valueNode.ChildByFieldName("return_type")

	sig := "const " + nameNode.Content(content) + " = "
	if paramsNode != nil {
		sig += paramsNode.Content(content)
	}
	sig += " =>"
	if returnNode != nil {
		sig += " " + returnNode.Content(content)
	}

	return sig
}

func (t *TypeScriptParser) extractCalls(node *sitter.Node, content []byte) []parser.CallSite {
	if node == nil {
		return nil
	}

	calls := make([]parser.CallSite, 0)
	t.collectCalls(node, content, &calls)
	return calls
}

func (t *TypeScriptParser) collectCalls(node *sitter.Node, content []byte, calls *[]parser.CallSite) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "call_expression":
		if callSite := t.extractCallSite(node, content); callSite.Name != "" {
			*calls = append(*calls, callSite)
		}
	case "new_expression":
		if ctor := node.ChildByFieldName("constructor"); ctor != nil {
			name, qualifier := t.extractCallName(ctor, content)
			if name != "" {
				*calls = append(*calls, parser.CallSite{Name: name, Qualifier: qualifier, Line: int(node.StartPoint().Row) + 1, Raw: "new " + ctor.Content(content)})
			}
		}
	case "jsx_opening_element", "jsx_self_closing_element":
		// <Component /> renders count as calls so component trees link up
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name, qualifier := t.extractCallName(nameNode, content)
			if name != "" && isComponentName(name) {
				*calls = append(*calls, parser.CallSite{Name: name, Qualifier: qualifier, Line: int(node.StartPoint().Row) + 1, Raw: "<" + name + ">"})
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		t.collectCalls(node.Child(i), content, calls)
	}
}

func (t *TypeScriptParser) extractCallSite(callNode *sitter.Node, content []byte) parser.CallSite {
	fnNode := callNode.ChildByFieldName("function")
	name, qualifier := t.extractCallName(fnNode, content)
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
	if qualifier == "this" {
		callSite.Receiver = qualifier
	}
	return callSite
}

func (t *TypeScriptParser) extractCallName(node *sitter.Node, content []byte) (name, qualifier string) {
	if node == nil {
		return "", ""
	}

	switch node.Type() {
	case "identifier":
		return node.Content(content), ""
	case "member_expression":
		objectNode := node.ChildByFieldName("object")
		property := node.ChildByFieldName("property")
		if property != nil {
			qualifierValue := ""
			if objectNode != nil {
				qualifierValue = strings.TrimSpace(objectNode.Content(content))
			}
			return property.Content(content), qualifierValue
		}
	case "subscript_expression":
		return t.extractCallName(node.ChildByFieldName("object"), content)
	case "parenthesized_expression":
		return t.extractCallName(node.ChildByFieldName("expression"), content)
	}

	qualifierValue, nameValue := splitQualifiedName(node.Content(content))
	return nameValue, qualifierValue
}

// parseClassHeritage splits "extends Base implements A, B" into its parts.
func parseClassHeritage(raw string) (extends, implements []string) {
	raw = strings.TrimSpace(raw)
	implIdx := strings.Index(raw, "implements ")
	extendsPart := raw
	if implIdx != -1 {
		extendsPart = raw[:implIdx]
		implements = typeNames(strings.TrimSpace(raw[implIdx+len("implements "):]))
	}
	extendsPart = strings.TrimSpace(extendsPart)
	if strings.HasPrefix(extendsPart, "extends") {
		extends = typeNames(strings.TrimSpace(strings.TrimPrefix(extendsPart, "extends")))
	}
	return extends, implements
}

func parseJSImportAliases(raw string) []string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "import ") {
		return nil
	}

	fromIdx := strings.Index(raw, " from ")
	if fromIdx == -1 {
		return nil
	}
	spec := strings.TrimSpace(strings.TrimPrefix(raw[:fromIdx], "import "))
	spec = strings.TrimSpace(strings.TrimPrefix(spec, "type "))
	if spec == "" {
		return nil
	}

	aliases := make([]string, 0)
	for _, part := range splitTopLevelCSV(spec) {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			for _, member := range splitTopLevelCSV(strings.Trim(part, "{} ")) {
				member = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(member), "type "))
				if member == "" {
					continue
				}
				base, alias := splitAliasByAs(member)
				if alias != "" {
					member = alias
				} else {
					member = base
				}
				if member != "" {
					aliases = append(aliases, member)
				}
			}
			continue
		}

		part = strings.TrimSpace(strings.TrimPrefix(part, "type "))
		if strings.HasPrefix(part, "* as ") {
			if alias := strings.TrimSpace(strings.TrimPrefix(part, "* as ")); alias != "" {
				aliases = append(aliases, alias)
			}
			continue
		}

		aliases = append(aliases, part)
	}
	return aliases
}

func formatTypeScriptReturnType(raw string) string {
	value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), ":"))
	if value == "" {
		return ""
	}
	return ": " + value
}

func isComponentName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func unquote(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}
