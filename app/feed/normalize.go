package feed

import (
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// normalizeEntry converts a parsed item into a nested tree of plain maps,
// slices and scalars, ready for Flatten. Parsed timestamps are carried as
// time.Time values; fields absent from the source feed are omitted rather
// than set to empty values.
func normalizeEntry(item *gofeed.Item) map[string]any {
	entry := make(map[string]any)

	if item.GUID != "" {
		entry["guid"] = item.GUID
	}
	if item.Title != "" {
		entry["title"] = item.Title
	}
	if item.Description != "" {
		entry["description"] = item.Description
	}
	if item.Content != "" {
		entry["content"] = item.Content
	}
	if item.Link != "" {
		entry["link"] = item.Link
	}
	if len(item.Links) > 0 {
		links := make([]any, 0, len(item.Links))
		for _, link := range item.Links {
			links = append(links, link)
		}
		entry["links"] = links
	}

	if item.Published != "" {
		entry["published"] = item.Published
	}
	if item.PublishedParsed != nil {
		entry["published_parsed"] = *item.PublishedParsed
	}
	if item.Updated != "" {
		entry["updated"] = item.Updated
	}
	if item.UpdatedParsed != nil {
		entry["updated_parsed"] = *item.UpdatedParsed
	}

	if authors := normalizeAuthors(item); len(authors) > 0 {
		entry["authors"] = authors
	}

	if len(item.Categories) > 0 {
		categories := make([]any, 0, len(item.Categories))
		for _, category := range item.Categories {
			categories = append(categories, category)
		}
		entry["categories"] = categories
	}

	if enclosures := normalizeEnclosures(item); len(enclosures) > 0 {
		entry["enclosures"] = enclosures
	}

	if item.Image != nil {
		image := make(map[string]any)
		if item.Image.URL != "" {
			image["url"] = item.Image.URL
		}
		if item.Image.Title != "" {
			image["title"] = item.Image.Title
		}
		if len(image) > 0 {
			entry["image"] = image
		}
	}

	for key, value := range item.Custom {
		if _, ok := entry[key]; !ok {
			entry[key] = value
		}
	}

	if len(item.Extensions) > 0 {
		entry["extensions"] = normalizeExtensions(item.Extensions)
	}

	return entry
}

func normalizeAuthors(item *gofeed.Item) []any {
	var authors []any

	appendPerson := func(person *gofeed.Person) {
		if person == nil {
			return
		}
		author := make(map[string]any)
		if person.Name != "" {
			author["name"] = person.Name
		}
		if person.Email != "" {
			author["email"] = person.Email
		}
		if len(author) > 0 {
			authors = append(authors, author)
		}
	}

	if len(item.Authors) > 0 {
		for _, person := range item.Authors {
			appendPerson(person)
		}
	} else if item.Author != nil {
		appendPerson(item.Author)
	}

	return authors
}

func normalizeEnclosures(item *gofeed.Item) []any {
	var enclosures []any

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		normalized := make(map[string]any)
		if enclosure.URL != "" {
			normalized["url"] = enclosure.URL
		}
		if enclosure.Length != "" {
			normalized["length"] = enclosure.Length
		}
		if enclosure.Type != "" {
			normalized["type"] = enclosure.Type
		}
		if len(normalized) > 0 {
			enclosures = append(enclosures, normalized)
		}
	}

	return enclosures
}

// normalizeExtensions carries the namespaced extension elements over as a
// nested tree. Extensions are the one part of an entry with arbitrary
// depth, so they lean on Flatten's recursion the hardest.
func normalizeExtensions(exts ext.Extensions) map[string]any {
	tree := make(map[string]any, len(exts))

	for prefix, byName := range exts {
		prefixTree := make(map[string]any, len(byName))
		for name, elements := range byName {
			list := make([]any, 0, len(elements))
			for _, element := range elements {
				list = append(list, normalizeExtension(element))
			}
			prefixTree[name] = list
		}
		tree[prefix] = prefixTree
	}

	return tree
}

func normalizeExtension(element ext.Extension) map[string]any {
	node := make(map[string]any)

	if element.Value != "" {
		node["value"] = element.Value
	}
	if len(element.Attrs) > 0 {
		attrs := make(map[string]any, len(element.Attrs))
		for key, value := range element.Attrs {
			attrs[key] = value
		}
		node["attrs"] = attrs
	}
	if len(element.Children) > 0 {
		children := make(map[string]any, len(element.Children))
		for name, elements := range element.Children {
			list := make([]any, 0, len(elements))
			for _, child := range elements {
				list = append(list, normalizeExtension(child))
			}
			children[name] = list
		}
		node["children"] = children
	}

	return node
}
