package demosite

import "strings"

// PageDefinition is one page of the demo site in every version.
type PageDefinition struct {
	Path        string
	Description string

	// Defects lists the rule ids version 1 of the page violates.
	Defects []string

	Versions map[int]string
}

// Site versions. Version 1 carries the known defects, version 2 is the
// remediated site.
const (
	VersionBroken = 1
	VersionFixed  = 2
)

// GetAllPages returns all demo page definitions.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		getHomePage(),
		getCatalogPage(),
		getContactPage(),
	}
}

const navLinks = `<nav><a href="/">Home</a> <a href="/catalog">Catalog</a> <a href="/contact">Contact</a></nav>`

func layout(title, head, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(title)
	b.WriteString(" - Harbor Books</title>\n")
	b.WriteString(head)
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// ===== HOME PAGE =====
func getHomePage() PageDefinition {
	return PageDefinition{
		Path:        "/",
		Description: "Storefront with an unlabelled photo and pale opening hours",
		Defects:     []string{"image-alt", "color-contrast"},
		Versions: map[int]string{
			VersionBroken: layout("Home", "", `<a href="#main">Skip to main content</a>
`+navLinks+`
<main id="main">
<h1>Harbor Books</h1>
<img src="/static/storefront.png">
<p style="color: #b3b3b3">Open daily from nine to five.</p>
</main>`),
			VersionFixed: layout("Home", "", `<a href="#main">Skip to main content</a>
`+navLinks+`
<main id="main">
<h1>Harbor Books</h1>
<img src="/static/storefront.png" alt="The Harbor Books storefront">
<p style="color: #595959">Open daily from nine to five.</p>
</main>`),
		},
	}
}

// ===== CATALOG PAGE =====
func getCatalogPage() PageDefinition {
	return PageDefinition{
		Path:        "/catalog",
		Description: "Book list without a skip link, with a skipped heading level and an image-only link",
		Defects:     []string{"skip-link", "heading-structure", "image-alt"},
		Versions: map[int]string{
			VersionBroken: layout("Catalog", "", navLinks+`
<main>
<h1>Catalog</h1>
<h3>New arrivals</h3>
<a href="/books/1"><img src="/static/9f86d081884c7d659a2feaa0c55ad015.png" alt=""></a>
</main>`),
			VersionFixed: layout("Catalog", "", `<a href="#main">Skip to main content</a>
`+navLinks+`
<main id="main">
<h1>Catalog</h1>
<h2>New arrivals</h2>
<a href="/books/1"><img src="/static/9f86d081884c7d659a2feaa0c55ad015.png" alt="The Lighthouse Keeper"></a>
</main>`),
		},
	}
}

// ===== CONTACT PAGE =====
func getContactPage() PageDefinition {
	return PageDefinition{
		Path:        "/contact",
		Description: "Contact form with an unlabelled field and a button without a focus outline",
		Defects:     []string{"form-label", "focus-visible"},
		Versions: map[int]string{
			VersionBroken: layout("Contact", "<style>.send { outline: none; }</style>\n", `<a href="#main">Skip to main content</a>
`+navLinks+`
<main id="main">
<h1>Contact us</h1>
<form action="/contact" method="post">
<input type="email" name="email" placeholder="Email">
<label for="msg">Message</label>
<textarea id="msg" name="message"></textarea>
<button class="send">Send</button>
</form>
</main>`),
			VersionFixed: layout("Contact", "<style>.send { outline: none; } .send:focus-visible { box-shadow: 0 0 0 3px #1a5fb4; }</style>\n", `<a href="#main">Skip to main content</a>
`+navLinks+`
<main id="main">
<h1>Contact us</h1>
<form action="/contact" method="post">
<label for="email">Email</label>
<input type="email" id="email" name="email">
<label for="msg">Message</label>
<textarea id="msg" name="message"></textarea>
<button class="send">Send</button>
</form>
</main>`),
		},
	}
}
