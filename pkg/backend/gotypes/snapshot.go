package gotypes

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
	"golang.org/x/tools/go/ast/astutil"
)

var (
	_ backend.Snapshot    = (*snapshot)(nil)
	_ backend.TokenLister = (*snapshot)(nil)
)

// snapshot answers queries in the coordinates of the snippet as given; offsets are
// moved past any synthetic package clause on the way in and back on the way out.
type snapshot struct {
	u       *unit
	tokFile *token.File
}

func newSnapshot(u *unit) *snapshot {
	return &snapshot{u: u, tokFile: u.fset.File(u.file.Pos())}
}

func (me *snapshot) pos(offset int) token.Pos {
	off := offset + me.u.prefix
	if off > me.tokFile.Size() {
		off = me.tokFile.Size()
	}
	if off < 0 {
		off = 0
	}
	return me.tokFile.Pos(off)
}

// offset maps pos back into the snippet. Positions outside the snippet file or inside
// the synthetic clause are negative.
func (me *snapshot) offset(pos token.Pos) int {
	if !pos.IsValid() || me.u.fset.File(pos) != me.tokFile {
		return -1
	}
	return me.tokFile.Offset(pos) - me.u.prefix
}

func (me *snapshot) identAt(offset int) *ast.Ident {
	if offset < 0 || offset >= len(me.u.text) {
		return nil
	}
	p := me.pos(offset)
	path, _ := astutil.PathEnclosingInterval(me.u.file, p, p+1)
	if len(path) == 0 {
		return nil
	}
	id, ok := path[0].(*ast.Ident)
	if !ok || p < id.Pos() || p >= id.End() {
		return nil
	}
	return id
}

func (me *snapshot) objectOf(id *ast.Ident) types.Object {
	if obj := me.u.info.Defs[id]; obj != nil {
		return obj
	}
	return me.u.info.Uses[id]
}

func (me *snapshot) Hover(ctx context.Context, offset int) (*backend.Hover, error) {
	id := me.identAt(offset)
	if id == nil {
		return nil, nil
	}
	obj := me.objectOf(id)
	if obj == nil {
		return nil, nil
	}
	start := me.offset(id.Pos())
	if start < 0 {
		return nil, nil
	}

	text := types.ObjectString(obj, types.RelativeTo(me.u.pkg))
	if doc := me.docFor(obj); doc != "" {
		text += "\n\n" + doc
	}

	return &backend.Hover{Text: text, Span: position.Span{Start: start, Length: len(id.Name)}}, nil
}

// docFor returns the doc comment of an object declared in the snippet.
func (me *snapshot) docFor(obj types.Object) string {
	if obj.Pkg() != me.u.pkg || me.offset(obj.Pos()) < 0 {
		return ""
	}

	path, _ := astutil.PathEnclosingInterval(me.u.file, obj.Pos(), obj.Pos())
	for _, n := range path {
		switch n := n.(type) {
		case *ast.Field:
			return commentText(n.Doc)
		case *ast.ValueSpec:
			if n.Doc != nil {
				return commentText(n.Doc)
			}
		case *ast.TypeSpec:
			if n.Doc != nil {
				return commentText(n.Doc)
			}
		case *ast.GenDecl:
			if n.Lparen.IsValid() {
				return ""
			}
			return commentText(n.Doc)
		case *ast.FuncDecl:
			if n.Name.Pos() == obj.Pos() {
				return commentText(n.Doc)
			}
			return ""
		case *ast.BlockStmt, *ast.FuncLit:
			return ""
		}
	}
	return ""
}

func commentText(g *ast.CommentGroup) string {
	if g == nil {
		return ""
	}
	return strings.TrimSpace(g.Text())
}

// Complete lists the members of the selector receiver before the cursor, or every name
// in scope at the cursor.
func (me *snapshot) Complete(ctx context.Context, offset int) (*backend.Completions, error) {
	text := me.u.text
	cursor := offset + 1
	if cursor > len(text) {
		cursor = len(text)
	}
	if cursor < 0 {
		cursor = 0
	}

	start := cursor
	for start > 0 && isIdentByte(text[start-1]) {
		start--
	}

	var items []backend.CompletionItem
	if start > 0 && text[start-1] == '.' {
		items = me.members(start - 1)
	} else {
		items = me.scopeNames(start)
	}

	return &backend.Completions{Items: items}, nil
}

func (me *snapshot) members(dot int) []backend.CompletionItem {
	dotPos := me.pos(dot)

	var recv ast.Expr
	ast.Inspect(me.u.file, func(n ast.Node) bool {
		if recv != nil {
			return false
		}
		if sel, ok := n.(*ast.SelectorExpr); ok && sel.X.End() == dotPos {
			recv = sel.X
			return false
		}
		return true
	})
	if recv == nil {
		return nil
	}

	if id, ok := recv.(*ast.Ident); ok {
		if pn, ok := me.u.info.Uses[id].(*types.PkgName); ok {
			return packageMembers(pn.Imported())
		}
	}

	tv, ok := me.u.info.Types[recv]
	if !ok || tv.Type == nil {
		return nil
	}

	c := &collector{pkg: me.u.pkg, seen: map[string]bool{}}
	c.fields(tv.Type, 0)
	c.methods(tv.Type)
	return c.items
}

func packageMembers(pkg *types.Package) []backend.CompletionItem {
	var items []backend.CompletionItem
	for _, name := range pkg.Scope().Names() {
		obj := pkg.Scope().Lookup(name)
		if obj.Exported() {
			items = append(items, backend.CompletionItem{Name: name, Kind: kindOf(obj)})
		}
	}
	return items
}

type collector struct {
	pkg   *types.Package
	seen  map[string]bool
	items []backend.CompletionItem
}

func (me *collector) add(obj types.Object) {
	if me.seen[obj.Name()] || (!obj.Exported() && obj.Pkg() != me.pkg) {
		return
	}
	me.seen[obj.Name()] = true
	me.items = append(me.items, backend.CompletionItem{Name: obj.Name(), Kind: kindOf(obj)})
}

func deref(t types.Type) types.Type {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

// fields adds struct fields, then the fields promoted from embedded structs.
func (me *collector) fields(t types.Type, depth int) {
	st, ok := deref(t).Underlying().(*types.Struct)
	if !ok || depth > 3 {
		return
	}
	for i := 0; i < st.NumFields(); i++ {
		me.add(st.Field(i))
	}
	for i := 0; i < st.NumFields(); i++ {
		if f := st.Field(i); f.Embedded() {
			me.fields(f.Type(), depth+1)
		}
	}
}

func (me *collector) methods(t types.Type) {
	base := deref(t)
	var ms *types.MethodSet
	if types.IsInterface(base) {
		ms = types.NewMethodSet(base)
	} else {
		ms = types.NewMethodSet(types.NewPointer(base))
	}
	for i := 0; i < ms.Len(); i++ {
		me.add(ms.At(i).Obj())
	}
}

func (me *snapshot) scopeNames(start int) []backend.CompletionItem {
	p := me.pos(start)
	pkgScope := me.u.pkg.Scope()

	scope := pkgScope.Innermost(p)
	if scope == nil {
		scope = pkgScope
	}

	seen := map[string]bool{}
	var items []backend.CompletionItem
	for s := scope; s != nil; s = s.Parent() {
		local := s != types.Universe && s != pkgScope && s.Parent() != pkgScope
		for _, name := range s.Names() {
			obj := s.Lookup(name)
			if name == "_" || seen[name] || (local && obj.Pos() >= p) {
				continue
			}
			seen[name] = true
			items = append(items, backend.CompletionItem{Name: name, Kind: kindOf(obj)})
		}
	}
	return items
}

func kindOf(obj types.Object) string {
	switch obj := obj.(type) {
	case *types.Var:
		if obj.IsField() {
			return "field"
		}
		return "var"
	case *types.Func:
		if sig, ok := obj.Type().(*types.Signature); ok && sig.Recv() != nil {
			return "method"
		}
		return "func"
	case *types.TypeName:
		return "type"
	case *types.Const:
		return "const"
	case *types.PkgName:
		return "package"
	case *types.Builtin:
		return "builtin"
	default:
		return "value"
	}
}

func (me *snapshot) Diagnostics(ctx context.Context) ([]backend.Diagnostic, error) {
	out := make([]backend.Diagnostic, 0, len(me.u.diags))
	for _, d := range me.u.diags {
		off := d.offset
		if off >= 0 {
			off -= me.u.prefix
		} else {
			off = me.offset(d.pos)
		}
		if off < 0 {
			off = 0
		}
		if off > len(me.u.text) {
			off = len(me.u.text)
		}

		out = append(out, backend.Diagnostic{
			Message:  d.message,
			ID:       d.id,
			Severity: d.severity,
			Span:     position.Span{Start: off, Length: identLen(me.u.text, off)},
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out, nil
}

// Tokens lists every identifier of the snippet that resolves to an object.
func (me *snapshot) Tokens(ctx context.Context) ([]position.Span, error) {
	set := position.NewSpanSet()
	var spans []position.Span

	collect := func(ids map[*ast.Ident]types.Object) {
		for id, obj := range ids {
			if obj == nil {
				continue
			}
			start := me.offset(id.Pos())
			if start < 0 {
				continue
			}
			span := position.Span{Start: start, Length: len(id.Name)}
			if set.Add(span) {
				spans = append(spans, span)
			}
		}
	}
	collect(me.u.info.Defs)
	collect(me.u.info.Uses)

	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

func (me *snapshot) Close() error {
	if me.u.cleanup != nil {
		return me.u.cleanup()
	}
	return nil
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 0x80 || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func identLen(text string, off int) int {
	end := off
	for end < len(text) && isIdentByte(text[end]) {
		end++
	}
	return end - off
}
