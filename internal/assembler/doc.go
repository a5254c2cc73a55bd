// Package assembler injects build units into XML templates.
//
// A Session indexes the placeholders of every template by unit key, walks the
// sibling-reference graph level by level, resolves each unit's imports and
// payload (concurrently within a level) and then records the injections in
// document order. Documents are only serialized once every unit succeeded;
// a failing session returns no artifacts at all.
package assembler
