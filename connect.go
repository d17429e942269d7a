package jdeserialize

import (
	"regexp"
	"sort"

	"golang.org/x/exp/maps"
)

var (
	innerFieldPattern  = regexp.MustCompile(`^this\$(\d+)$`)
	memberClassPattern = regexp.MustCompile(`^((?:[^$]+\$)*[^$]+)\$([^$]+)$`)
)

// connectMemberClasses recovers the inner-class and static-member-class
// relationships the serialization format does not carry, following the JDK
// 1.1 Inner Classes Specification naming conventions:
//
//	for each class C containing an object reference field named this$N:
//	    C's name must match Outer$Inner, Outer must name an existing
//	    class, and the field's type must be exactly Outer; then C is an
//	    inner class of Outer named Inner, and the this$N field is hidden
//	    from normal dumping.
//
//	afterwards, for each remaining class C matching Outer$Inner whose
//	    Outer exists: C is a static member class of Outer named Inner.
//
// Serializing a static member class does not require serializing its
// enclosing class, so an absent Outer is not an error in the second
// pattern: the class is simply left unchanged.
//
// The pass operates on the current (final) handle epoch only. Renames are
// committed last, and abort if the new name collides with an existing
// class name.
func (p *Parser) connectMemberClasses() error {
	classes := make(map[string]*ClassDesc)
	classnames := make(map[string]bool)
	for _, h := range sortedHandles(p.handles.current) {
		if cd, ok := p.handles.current[h].(*ClassDesc); ok {
			classes[cd.Name] = cd
			classnames[cd.Name] = true
		}
	}

	newNames := make(map[*ClassDesc]string)
	var renameOrder []*ClassDesc

	for _, name := range sortedClassNames(classes) {
		cd := classes[name]
		if cd.DescType == ProxyClass {
			continue
		}
		for _, f := range cd.Fields {
			if f.Type != FieldObject || !innerFieldPattern.MatchString(f.Name) {
				continue
			}
			m := memberClassPattern.FindStringSubmatch(cd.Name)
			if m == nil {
				return validityErrorf("inner class enclosing-class reference field exists, but class name doesn't match the expected pattern: class %s field %s", cd.Name, f.Name)
			}
			outer, inner := m[1], m[2]
			outerCd := classes[outer]
			if outerCd == nil {
				return validityErrorf("couldn't connect inner classes: outer class not found for field name %s", f.Name)
			}
			javaType, err := f.JavaType()
			if err != nil {
				return err
			}
			if outerCd.Name != javaType {
				return validityErrorf("outer class field type %s doesn't match outer class name %s", javaType, outerCd.Name)
			}
			outerCd.addInnerClass(cd)
			cd.isLocalInnerClass = false
			cd.isInnerClass = true
			f.isInnerClassReference = true
			if _, scheduled := newNames[cd]; !scheduled {
				renameOrder = append(renameOrder, cd)
			}
			newNames[cd] = inner
		}
	}

	for _, name := range sortedClassNames(classes) {
		cd := classes[name]
		if cd.DescType == ProxyClass || cd.isInnerClass {
			continue
		}
		m := memberClassPattern.FindStringSubmatch(cd.Name)
		if m == nil {
			continue
		}
		outer, inner := m[1], m[2]
		outerCd := classes[outer]
		if outerCd == nil {
			continue
		}
		outerCd.addInnerClass(cd)
		cd.isStaticMemberClass = true
		if _, scheduled := newNames[cd]; !scheduled {
			renameOrder = append(renameOrder, cd)
		}
		newNames[cd] = inner
	}

	for _, ncd := range renameOrder {
		name := newNames[ncd]
		if classnames[name] {
			return validityErrorf("can't rename class from %s to %s: class already exists", ncd.Name, name)
		}
		for _, cname := range sortedClassNames(classes) {
			cd := classes[cname]
			if cd.DescType == ProxyClass {
				continue
			}
			for _, f := range cd.Fields {
				if f.Type != FieldObject {
					continue
				}
				javaType, err := f.JavaType()
				if err != nil {
					return err
				}
				if javaType == ncd.Name {
					if err := f.setReferenceTypeName(name); err != nil {
						return err
					}
				}
			}
		}
		delete(classnames, ncd.Name)
		ncd.Name = name
		classnames[name] = true
	}
	return nil
}

func sortedClassNames(classes map[string]*ClassDesc) []string {
	names := maps.Keys(classes)
	sort.Strings(names)
	return names
}
