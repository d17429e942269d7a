package jdeserialize

import (
	"fmt"
	"io"
	"regexp"
)

const (
	indentUnit = "    "
	codeWidth  = 90
)

func indent(level int) string {
	s := ""
	for i := 0; i < level; i++ {
		s += indentUnit
	}
	return s
}

func contentString(c Content) string {
	if c == nil {
		return "null"
	}
	return fmt.Sprint(c)
}

// Dumper renders parsed content in the three output stages of the
// command-line tool: the stream content listing, class declarations
// formatted as Java source, and per-instance field dumps. It consumes the
// content model read-only.
type Dumper struct {
	Out io.Writer

	ShowContent   bool
	ShowClasses   bool
	ShowInstances bool
	// ShowArrays includes array classes (e.g. int[]) in the class stage.
	ShowArrays bool
	// FixNames rewrites illegal identifier characters in class names.
	FixNames bool
	// Filter excludes matching class names from the class stage.
	Filter *regexp.Regexp
}

// Dump writes the enabled output stages for a completed parse.
func (d *Dumper) Dump(p *Parser) error {
	if d.ShowContent {
		fmt.Fprintln(d.Out, "//// BEGIN stream content output")
		for _, c := range p.Contents() {
			fmt.Fprintln(d.Out, contentString(c))
		}
		fmt.Fprintln(d.Out, "//// END stream content output")
		fmt.Fprintln(d.Out)
	}

	final := finalEpoch(p)
	if d.ShowClasses {
		heading := "//// BEGIN class declarations"
		if !d.ShowArrays {
			heading += " (excluding array classes)"
		}
		if d.Filter != nil {
			heading += " (exclusion filter " + d.Filter.String() + ")"
		}
		fmt.Fprintln(d.Out, heading)
		for _, h := range sortedHandles(final) {
			cd, ok := final[h].(*ClassDesc)
			if !ok {
				continue
			}
			if !d.ShowArrays && cd.IsArrayClass() {
				continue
			}
			// Member classes are rendered inside their enclosing class.
			if cd.IsStaticMemberClass() || cd.IsInnerClass() {
				continue
			}
			if d.Filter != nil && d.Filter.MatchString(cd.Name) {
				continue
			}
			if err := d.DumpClassDesc(0, cd); err != nil {
				return err
			}
			fmt.Fprintln(d.Out)
		}
		fmt.Fprintln(d.Out, "//// END class declarations")
		fmt.Fprintln(d.Out)
	}

	if d.ShowInstances {
		fmt.Fprintln(d.Out, "//// BEGIN instance dump")
		for _, h := range sortedHandles(final) {
			if inst, ok := final[h].(*Instance); ok {
				d.DumpInstance(inst)
			}
		}
		fmt.Fprintln(d.Out, "//// END instance dump")
		fmt.Fprintln(d.Out)
	}
	return nil
}

func finalEpoch(p *Parser) map[int32]Content {
	epochs := p.HandleMaps()
	if len(epochs) == 0 {
		return nil
	}
	return epochs[len(epochs)-1]
}

// DumpClassDesc writes one class declaration, formatted as Java source, at
// the given indent level. Inner classes are rendered nested.
func (d *Dumper) DumpClassDesc(level int, cd *ClassDesc) error {
	classname := cd.Name
	if d.FixNames {
		classname = fixClassName(classname)
	}
	if len(cd.Annotations) > 0 {
		fmt.Fprintln(d.Out, indent(level)+"// annotations: ")
		for _, c := range cd.Annotations {
			fmt.Fprintln(d.Out, indent(level)+"// "+indent(1)+contentString(c))
		}
	}
	switch cd.DescType {
	case NormalClass:
		if cd.Flags&ScEnum != 0 {
			d.dumpEnumDecl(level, classname, cd)
			return nil
		}
		fmt.Fprint(d.Out, indent(level))
		if cd.IsStaticMemberClass() {
			fmt.Fprint(d.Out, "static ")
		}
		name := classname
		if cd.IsArrayClass() {
			resolved, err := resolveJavaType(FieldArray, cd.Name, false, d.FixNames)
			if err != nil {
				return err
			}
			name = resolved
		}
		fmt.Fprint(d.Out, "class "+name)
		if cd.SuperClass != nil {
			fmt.Fprint(d.Out, " extends "+cd.SuperClass.Name)
		}
		fmt.Fprint(d.Out, " implements ")
		if cd.Flags&ScExternalizable != 0 {
			fmt.Fprint(d.Out, "java.io.Externalizable")
		} else {
			fmt.Fprint(d.Out, "java.io.Serializable")
		}
		for _, intf := range cd.Interfaces {
			fmt.Fprint(d.Out, ", "+intf)
		}
		fmt.Fprintln(d.Out, " {")
		for _, f := range cd.Fields {
			if f.IsInnerClassReference() {
				continue
			}
			javaType, err := f.JavaType()
			if err != nil {
				return err
			}
			fmt.Fprintln(d.Out, indent(level+1)+javaType+" "+f.Name+";")
		}
		for _, inner := range cd.InnerClasses {
			if err := d.DumpClassDesc(level+1, inner); err != nil {
				return err
			}
		}
		fmt.Fprintln(d.Out, indent(level)+"}")
	case ProxyClass:
		fmt.Fprint(d.Out, indent(level)+"// proxy class "+hex(int64(cd.Handle())))
		if cd.SuperClass != nil {
			fmt.Fprint(d.Out, " extends "+cd.SuperClass.Name)
		}
		fmt.Fprintln(d.Out, " implements ")
		for _, intf := range cd.Interfaces {
			fmt.Fprintln(d.Out, indent(level)+"//    "+intf+", ")
		}
		if cd.Flags&ScExternalizable != 0 {
			fmt.Fprintln(d.Out, indent(level)+"//    java.io.Externalizable")
		} else {
			fmt.Fprintln(d.Out, indent(level)+"//    java.io.Serializable")
		}
	default:
		return validityErrorf("encountered invalid classdesc type")
	}
	return nil
}

func (d *Dumper) dumpEnumDecl(level int, classname string, cd *ClassDesc) {
	fmt.Fprint(d.Out, indent(level)+"enum "+classname+" {")
	shouldIndent := true
	length := len(indent(level + 1))
	for _, constant := range cd.EnumConstants {
		if shouldIndent {
			fmt.Fprintln(d.Out)
			fmt.Fprint(d.Out, indent(level+1))
			shouldIndent = false
		}
		length += len(constant)
		fmt.Fprint(d.Out, constant+", ")
		if length >= codeWidth {
			length = len(indent(level + 1))
			shouldIndent = true
		}
	}
	fmt.Fprintln(d.Out)
	fmt.Fprintln(d.Out, indent(level)+"}")
}

// DumpInstance writes one instance with its object annotations and
// per-class field data.
func (d *Dumper) DumpInstance(inst *Instance) {
	fmt.Fprintf(d.Out, "[instance %s: %s/%s",
		hex(int64(inst.Handle())), hex(int64(inst.ClassDesc.Handle())), inst.ClassDesc.Name)
	if len(inst.Annotations) > 0 {
		fmt.Fprintln(d.Out)
		fmt.Fprintln(d.Out, "  object annotations:")
		for _, cd := range annotationOrder(inst) {
			fmt.Fprintln(d.Out, indent(1)+cd.Name)
			for _, c := range inst.Annotations[cd] {
				fmt.Fprintln(d.Out, indent(2)+contentString(c))
			}
		}
	}
	if len(inst.FieldData) > 0 {
		fmt.Fprintln(d.Out)
		fmt.Fprintln(d.Out, "  field data:")
		for _, cd := range fieldDataOrder(inst) {
			fmt.Fprintln(d.Out, indent(1)+hex(int64(cd.Handle()))+"/"+cd.Name+":")
			values := inst.FieldData[cd]
			for _, f := range cd.Fields {
				v, ok := values[f]
				if !ok {
					continue
				}
				fmt.Fprint(d.Out, indent(2)+f.Name+": ")
				if c, isContent := v.(Content); isContent {
					if c.Handle() == inst.Handle() {
						fmt.Fprint(d.Out, "this")
					} else {
						fmt.Fprint(d.Out, "r"+hex(int64(c.Handle())))
					}
					fmt.Fprintln(d.Out, ": "+contentString(c))
				} else if s, isString := v.(string); isString {
					fmt.Fprintln(d.Out, "\""+unicodeEscape(s)+"\"")
				} else {
					fmt.Fprintln(d.Out, fmt.Sprint(v))
				}
			}
		}
	}
	fmt.Fprintln(d.Out, "]")
}

func annotationOrder(inst *Instance) []*ClassDesc {
	var order []*ClassDesc
	for _, cd := range inst.ClassDesc.hierarchy() {
		if _, ok := inst.Annotations[cd]; ok {
			order = append(order, cd)
		}
	}
	return order
}

func fieldDataOrder(inst *Instance) []*ClassDesc {
	var order []*ClassDesc
	for _, cd := range inst.ClassDesc.hierarchy() {
		if _, ok := inst.FieldData[cd]; ok {
			order = append(order, cd)
		}
	}
	return order
}
