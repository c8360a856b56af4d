package protobuf

import (
	"fmt"
	"strings"

	"github.com/bufbuild/protocompile/ast"
	"github.com/bufbuild/protocompile/linker"
	"github.com/walteh/twoslash/pkg/position"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// entry is one hoverable token of the source.
type entry struct {
	span position.Span
	text string
}

type index struct {
	entries []entry
	// types holds declared message and enum names relative to the package, in
	// declaration order.
	types []string
}

type indexer struct {
	res   linker.Result
	file  *ast.FileNode
	out   *index
	hover map[string]string
	refs  []typeRef
}

type typeRef struct {
	node   ast.Node
	target string
}

func buildIndex(res linker.Result) *index {
	me := &indexer{
		res:   res,
		file:  res.AST(),
		out:   &index{},
		hover: map[string]string{},
	}

	fdp := res.FileDescriptorProto()
	pkg := fdp.GetPackage()

	for _, msg := range fdp.GetMessageType() {
		me.message(pkg, "", msg)
	}
	for _, enum := range fdp.GetEnumType() {
		me.enum(pkg, "", enum)
	}
	for _, svc := range fdp.GetService() {
		me.service(pkg, svc)
	}

	// references resolve once every declaration is known
	for _, ref := range me.refs {
		if text, ok := me.hover[ref.target]; ok {
			me.add(ref.node, text)
		}
	}

	return me.out
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (me *indexer) add(node ast.Node, text string) {
	if node == nil {
		return
	}
	info := me.file.NodeInfo(node)
	start, end := info.Start().Offset, info.End().Offset
	if end <= start {
		return
	}
	me.out.entries = append(me.out.entries, entry{span: position.NewSpan(start, end), text: text})
}

func (me *indexer) comments(full string) string {
	desc := me.res.FindDescriptorByName(protoreflect.FullName(full))
	if desc == nil {
		return ""
	}
	loc := me.res.SourceLocations().ByDescriptor(desc)
	return strings.TrimSpace(loc.LeadingComments)
}

func (me *indexer) withComments(full, text string) string {
	if c := me.comments(full); c != "" {
		return text + "\n\n" + c
	}
	return text
}

func (me *indexer) message(pkg, parent string, msg *descriptorpb.DescriptorProto) {
	rel := join(parent, msg.GetName())
	full := join(pkg, rel)
	if !msg.GetOptions().GetMapEntry() {
		me.out.types = append(me.out.types, rel)
	}

	text := me.withComments(full, "message "+full)
	me.hover["."+full] = text
	if node := me.res.MessageNode(msg); node != nil {
		me.add(node.MessageName(), text)
	}

	for _, field := range msg.GetField() {
		me.field(full, field)
	}
	for _, nested := range msg.GetNestedType() {
		me.message(pkg, rel, nested)
	}
	for _, enum := range msg.GetEnumType() {
		me.enum(pkg, rel, enum)
	}
}

func fieldType(field *descriptorpb.FieldDescriptorProto) string {
	if name := field.GetTypeName(); name != "" {
		return strings.TrimPrefix(name, ".")
	}
	return strings.ToLower(strings.TrimPrefix(field.GetType().String(), "TYPE_"))
}

func (me *indexer) field(owner string, field *descriptorpb.FieldDescriptorProto) {
	full := join(owner, field.GetName())

	label := ""
	if field.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED {
		label = "repeated "
	}
	text := me.withComments(full, fmt.Sprintf("%s%s %s = %d", label, fieldType(field), full, field.GetNumber()))

	node := me.res.FieldNode(field)
	if node == nil {
		return
	}
	me.add(node.FieldName(), text)
	if field.GetTypeName() != "" {
		me.refs = append(me.refs, typeRef{node: node.FieldType(), target: field.GetTypeName()})
	}
}

func (me *indexer) enum(pkg, parent string, enum *descriptorpb.EnumDescriptorProto) {
	rel := join(parent, enum.GetName())
	full := join(pkg, rel)
	me.out.types = append(me.out.types, rel)

	text := me.withComments(full, "enum "+full)
	me.hover["."+full] = text
	if node, ok := me.res.EnumNode(enum).(*ast.EnumNode); ok {
		me.add(node.Name, text)
	}

	// enum values are scoped alongside their enum
	scope := join(pkg, parent)
	for _, value := range enum.GetValue() {
		valueText := me.withComments(join(scope, value.GetName()), fmt.Sprintf("%s.%s = %d", full, value.GetName(), value.GetNumber()))
		if node := me.res.EnumValueNode(value); node != nil {
			me.add(node.GetName(), valueText)
		}
	}
}

func (me *indexer) service(pkg string, svc *descriptorpb.ServiceDescriptorProto) {
	full := join(pkg, svc.GetName())
	text := me.withComments(full, "service "+full)
	if node, ok := me.res.ServiceNode(svc).(*ast.ServiceNode); ok {
		me.add(node.Name, text)
	}

	for _, method := range svc.GetMethod() {
		mfull := join(full, method.GetName())
		mtext := me.withComments(mfull, fmt.Sprintf("rpc %s(%s) returns (%s)",
			mfull, strings.TrimPrefix(method.GetInputType(), "."), strings.TrimPrefix(method.GetOutputType(), ".")))

		node := me.res.MethodNode(method)
		if node == nil {
			continue
		}
		me.add(node.GetName(), mtext)
		me.refs = append(me.refs,
			typeRef{node: node.GetInputType(), target: method.GetInputType()},
			typeRef{node: node.GetOutputType(), target: method.GetOutputType()},
		)
	}
}

// at returns the innermost entry containing offset.
func (me *index) at(offset int) (entry, bool) {
	var best entry
	found := false
	for _, e := range me.entries {
		if !e.span.Contains(offset) {
			continue
		}
		if !found || e.span.Length < best.span.Length {
			best, found = e, true
		}
	}
	return best, found
}
