package ingest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/pkg/types"
)

// GoIngester extracts symbol-level content units and a structural graph
// from Go source using the standard AST packages. Packages map to
// namespace nodes, structs and interfaces to type nodes, methods and
// functions to method nodes.
type GoIngester struct{}

// NewGoIngester creates a Go source ingester.
func NewGoIngester() *GoIngester {
	return &GoIngester{}
}

// Extensions implements Ingester.
func (g *GoIngester) Extensions() []string {
	return []string{".go"}
}

// Ingest parses one Go file. Syntax errors are non-fatal when the parser
// can still produce a partial AST; whatever declarations survive are
// extracted.
func (g *GoIngester) Ingest(path string, src []byte, repositoryPath string) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if file == nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	ext := &goExtractor{
		fset:       fset,
		src:        src,
		path:       pathutil.Normalize(path),
		repository: repositoryPath,
		methodSets: make(map[string][]string),
		isIface:    make(map[string]bool),
		typeIDs:    make(map[string]string),
		funcIDs:    make(map[string]string),
		methodIDs:  make(map[string]string),
	}
	if file.Name != nil {
		ext.pkg = file.Name.Name
	}

	ext.extractPackage()
	// Types first so methods can attach to their receiver regardless of
	// declaration order.
	for _, decl := range file.Decls {
		if d, ok := decl.(*ast.GenDecl); ok {
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					ext.extractType(ts, d.Doc)
				}
			}
		}
	}
	for _, decl := range file.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok {
			ext.extractFunc(d)
		}
	}
	ext.linkInterfaces()
	for _, decl := range file.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			ext.extractBodyEdges(fd)
		}
	}

	if len(ext.result.Contents) == 0 {
		// Nothing declaration-shaped; index the file as one unit
		ext.result.Contents = append(ext.result.Contents, types.Content{
			ID:         ext.path,
			Text:       string(src),
			Type:       types.ContentTypeCode,
			SourcePath: ext.path,
			Metadata:   map[string]string{types.MetaLanguage: "go"},
		})
	}

	return &ext.result, nil
}

// goExtractor accumulates extraction state for one file.
type goExtractor struct {
	fset       *token.FileSet
	src        []byte
	path       string
	repository string
	pkg        string

	result Result

	pkgID      string
	typeIDs    map[string]string   // type name -> node id
	funcIDs    map[string]string   // function name -> node id
	methodIDs  map[string]string   // method name -> node id (first wins)
	methodSets map[string][]string // receiver/interface type -> method names
	ifaceNames []string
	isIface    map[string]bool
	structs    []structInfo
}

type structInfo struct {
	name   string
	embeds []string
}

func (e *goExtractor) nodeID(fullName string) string {
	return e.repository + "::" + fullName
}

func edgeID(et types.EdgeType, source, target string) string {
	return fmt.Sprintf("%s:%s->%s", et, source, target)
}

func (e *goExtractor) addEdge(et types.EdgeType, source, target string) {
	e.result.Edges = append(e.result.Edges, types.GraphEdge{
		ID:       edgeID(et, source, target),
		EdgeType: et,
		SourceID: source,
		TargetID: target,
	})
}

func (e *goExtractor) extractPackage() {
	if e.pkg == "" {
		return
	}
	e.pkgID = e.nodeID(e.pkg)
	e.result.Nodes = append(e.result.Nodes, types.GraphNode{
		ID:             e.pkgID,
		NodeType:       types.NodeNamespace,
		Name:           e.pkg,
		FullName:       e.pkg,
		FilePath:       e.path,
		RepositoryPath: e.repository,
	})
}

func (e *goExtractor) extractType(ts *ast.TypeSpec, doc *ast.CommentGroup) {
	name := ts.Name.Name
	fullName := e.qualify(name)
	id := e.nodeID(fullName)
	e.typeIDs[name] = id

	var nodeType types.NodeType
	var signature string
	switch t := ts.Type.(type) {
	case *ast.StructType:
		nodeType = types.NodeStruct
		signature = fmt.Sprintf("type %s struct", name)
		info := structInfo{name: name}
		if t.Fields != nil {
			for _, field := range t.Fields.List {
				if len(field.Names) == 0 {
					// Embedded type
					if base := baseTypeName(field.Type); base != "" {
						info.embeds = append(info.embeds, base)
					}
					continue
				}
				for _, fieldName := range field.Names {
					e.extractField(id, fullName, fieldName.Name, field)
				}
			}
		}
		e.structs = append(e.structs, info)
	case *ast.InterfaceType:
		nodeType = types.NodeInterface
		signature = fmt.Sprintf("type %s interface", name)
		e.ifaceNames = append(e.ifaceNames, name)
		e.isIface[name] = true
		if t.Methods != nil {
			for _, m := range t.Methods.List {
				if len(m.Names) > 0 {
					e.methodSets[name] = append(e.methodSets[name], m.Names[0].Name)
					e.extractInterfaceMethod(id, fullName, m)
				} else if base := baseTypeName(m.Type); base != "" {
					// Embedded interface
					e.structs = append(e.structs, structInfo{name: name, embeds: []string{base}})
				}
			}
		}
	default:
		nodeType = types.NodeClass
		signature = fmt.Sprintf("type %s %s", name, exprString(ts.Type))
	}

	e.result.Nodes = append(e.result.Nodes, types.GraphNode{
		ID:             id,
		NodeType:       nodeType,
		Name:           name,
		FullName:       fullName,
		FilePath:       e.path,
		LineNumber:     e.line(ts.Pos()),
		Signature:      signature,
		Modifiers:      scopeModifier(name),
		RepositoryPath: e.repository,
	})
	if e.pkgID != "" {
		e.addEdge(types.EdgeDeclares, e.pkgID, id)
	}

	e.addContent(name, signature, "type", declRange(ts.Pos(), ts.End(), doc))
}

func (e *goExtractor) extractField(typeID, typeFullName, fieldName string, field *ast.Field) {
	id := e.nodeID(typeFullName + "." + fieldName)
	e.result.Nodes = append(e.result.Nodes, types.GraphNode{
		ID:             id,
		NodeType:       types.NodeField,
		Name:           fieldName,
		FullName:       typeFullName + "." + fieldName,
		FilePath:       e.path,
		LineNumber:     e.line(field.Pos()),
		Signature:      fmt.Sprintf("%s %s", fieldName, exprString(field.Type)),
		Modifiers:      scopeModifier(fieldName),
		RepositoryPath: e.repository,
	})
	e.addEdge(types.EdgeContains, typeID, id)
}

func (e *goExtractor) extractInterfaceMethod(ifaceID, ifaceFullName string, m *ast.Field) {
	name := m.Names[0].Name
	id := e.nodeID(ifaceFullName + "." + name)
	e.result.Nodes = append(e.result.Nodes, types.GraphNode{
		ID:             id,
		NodeType:       types.NodeMethod,
		Name:           name,
		FullName:       ifaceFullName + "." + name,
		FilePath:       e.path,
		LineNumber:     e.line(m.Pos()),
		Signature:      name + strings.TrimPrefix(exprString(m.Type), "func"),
		Modifiers:      scopeModifier(name),
		RepositoryPath: e.repository,
	})
	e.addEdge(types.EdgeContains, ifaceID, id)
}

func (e *goExtractor) extractFunc(fd *ast.FuncDecl) {
	name := fd.Name.Name
	signature := funcSignature(fd)

	var fullName, kind string
	var containerID string
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		recv := receiverTypeName(fd.Recv.List[0].Type)
		fullName = e.qualify(recv) + "." + name
		kind = "method"
		containerID = e.typeIDs[recv]
		e.methodSets[recv] = append(e.methodSets[recv], name)
	} else {
		fullName = e.qualify(name)
		kind = "function"
		containerID = e.pkgID
	}

	id := e.nodeID(fullName)
	e.result.Nodes = append(e.result.Nodes, types.GraphNode{
		ID:             id,
		NodeType:       types.NodeMethod,
		Name:           name,
		FullName:       fullName,
		FilePath:       e.path,
		LineNumber:     e.line(fd.Pos()),
		Signature:      signature,
		Modifiers:      scopeModifier(name),
		RepositoryPath: e.repository,
	})
	if containerID != "" {
		e.addEdge(types.EdgeContains, containerID, id)
	}

	if kind == "function" {
		e.funcIDs[name] = id
	} else if _, seen := e.methodIDs[name]; !seen {
		e.methodIDs[name] = id
	}

	symbol := name
	if kind == "method" {
		symbol = receiverTypeName(fd.Recv.List[0].Type) + "." + name
	}
	e.addContent(symbol, signature, kind, declRange(fd.Pos(), fd.End(), fd.Doc))
}

// linkInterfaces emits Implements edges for structs whose method-name set
// covers an interface declared in the same file, and Inherits edges for
// embedded types. Name-based matching only; no type checking.
func (e *goExtractor) linkInterfaces() {
	for _, s := range e.structs {
		sourceID, ok := e.typeIDs[s.name]
		if !ok {
			continue
		}
		for _, embed := range s.embeds {
			if targetID, ok := e.typeIDs[embed]; ok && targetID != sourceID {
				e.addEdge(types.EdgeInherits, sourceID, targetID)
			}
		}
		if e.isIface[s.name] {
			continue // Interfaces inherit, they don't implement
		}
		for _, iface := range e.ifaceNames {
			if iface == s.name {
				continue
			}
			required := e.methodSets[iface]
			if len(required) == 0 {
				continue
			}
			if containsAll(e.methodSets[s.name], required) {
				e.addEdge(types.EdgeImplements, sourceID, e.typeIDs[iface])
			}
		}
	}
}

// extractBodyEdges walks a function body emitting Calls edges to functions
// and methods declared in the same file, and Uses edges for composite
// literals of locally declared types.
func (e *goExtractor) extractBodyEdges(fd *ast.FuncDecl) {
	if fd.Body == nil {
		return
	}

	var sourceID string
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		recv := receiverTypeName(fd.Recv.List[0].Type)
		sourceID = e.nodeID(e.qualify(recv) + "." + fd.Name.Name)
	} else {
		sourceID = e.nodeID(e.qualify(fd.Name.Name))
	}

	seen := make(map[string]bool)
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			var targetID string
			switch fun := node.Fun.(type) {
			case *ast.Ident:
				targetID = e.funcIDs[fun.Name]
			case *ast.SelectorExpr:
				targetID = e.methodIDs[fun.Sel.Name]
			}
			if targetID != "" && targetID != sourceID && !seen[targetID] {
				seen[targetID] = true
				e.addEdge(types.EdgeCalls, sourceID, targetID)
			}
		case *ast.CompositeLit:
			if base := baseTypeName(node.Type); base != "" {
				if targetID, ok := e.typeIDs[base]; ok && !seen["uses:"+targetID] {
					seen["uses:"+targetID] = true
					e.addEdge(types.EdgeUses, sourceID, targetID)
				}
			}
		}
		return true
	})
}

type posRange struct {
	start, end token.Pos
}

// declRange widens a declaration's range to include its doc comment.
func declRange(start, end token.Pos, doc *ast.CommentGroup) posRange {
	if doc != nil && doc.Pos() < start {
		start = doc.Pos()
	}
	return posRange{start: start, end: end}
}

func (e *goExtractor) addContent(symbol, signature, kind string, r posRange) {
	startOff := e.fset.Position(r.start).Offset
	endOff := e.fset.Position(r.end).Offset
	if startOff < 0 || endOff > len(e.src) || startOff >= endOff {
		return
	}

	e.result.Contents = append(e.result.Contents, types.Content{
		ID:         unitID(e.path, kind, symbol),
		Text:       string(e.src[startOff:endOff]),
		Type:       types.ContentTypeCode,
		SourcePath: e.path,
		Metadata: map[string]string{
			types.MetaSymbol:    symbol,
			types.MetaSignature: signature,
			types.MetaStartLine: strconv.Itoa(e.line(r.start)),
			types.MetaEndLine:   strconv.Itoa(e.line(r.end)),
			types.MetaLanguage:  "go",
			types.MetaChunkKind: kind,
		},
	})
}

func (e *goExtractor) qualify(name string) string {
	if e.pkg == "" {
		return name
	}
	return e.pkg + "." + name
}

func (e *goExtractor) line(pos token.Pos) int {
	return e.fset.Position(pos).Line
}

// receiverTypeName extracts the receiver type name from a method
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr: // Generic receiver
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

// baseTypeName resolves an embedded-field or literal type expression to a
// bare local name, or "" when the type lives in another package.
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

// funcSignature builds a function signature string
func funcSignature(fd *ast.FuncDecl) string {
	var sig strings.Builder
	sig.WriteString("func ")

	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(fd.Recv.List[0].Type))
		sig.WriteString(") ")
	}

	sig.WriteString(fd.Name.Name)
	sig.WriteString("(")
	if fd.Type.Params != nil {
		sig.WriteString(fieldListString(fd.Type.Params))
	}
	sig.WriteString(")")

	if fd.Type.Results != nil {
		results := fieldListString(fd.Type.Results)
		if results != "" {
			if fd.Type.Results.NumFields() > 1 {
				sig.WriteString(" (")
				sig.WriteString(results)
				sig.WriteString(")")
			} else {
				sig.WriteString(" ")
				sig.WriteString(results)
			}
		}
	}

	return sig.String()
}

// fieldListString converts a field list to a string representation
func fieldListString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprString(field.Type)
		if len(field.Names) > 0 {
			for _, name := range field.Names {
				parts = append(parts, fmt.Sprintf("%s %s", name.Name, typeStr))
			}
		} else {
			parts = append(parts, typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprString converts a type expression to a string representation
func exprString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	default:
		return "..."
	}
}

func scopeModifier(name string) string {
	if token.IsExported(name) {
		return "exported"
	}
	return "unexported"
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
