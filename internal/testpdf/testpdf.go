// Package testpdf synthesizes small, valid PDF files for tests. Cross-reference
// offsets are computed, not hardcoded, and embedded images are real JPEG bytes
// produced at runtime, so fixtures stay valid without binary testdata.
package testpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
)

// ImageSpec describes an embedded DCTDecode image XObject.
type ImageSpec struct {
	Width  int
	Height int
	// Noise fills the bitmap with seeded random pixels; noisy JPEG data stays
	// large under recompression, flat data stays small.
	Noise bool
	// Quality for the embedded JPEG encoding. 0 means 90.
	Quality int
	// Seed varies the noise so images on different pages stay distinct and
	// cannot be deduplicated away. 0 means a fixed default seed.
	Seed int64
}

// PageSpec describes one page of a generated document.
type PageSpec struct {
	// Text is painted with the standard Helvetica font. Parentheses and
	// backslashes are not escaped; keep it simple.
	Text string
	// Image, when set, is embedded as XObject /Im0 and painted once.
	Image *ImageSpec
	// FormImage, when set, embeds a Form XObject /Fm0 whose own resources
	// hold an image /Im0 painted from the form's content stream.
	FormImage *ImageSpec
	// RawContent overrides the generated content stream entirely.
	RawContent string
	// NoResources omits the page's resource dictionary; useful together with
	// RawContent holding inline images.
	NoResources bool
}

// JPEG encodes a bitmap per spec and returns the raw JPEG bytes.
func JPEG(spec ImageSpec) []byte {
	img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	seed := spec.Seed
	if seed == 0 {
		seed = 42
	}
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			if spec.Noise {
				img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
			} else {
				img.Set(x, y, color.RGBA{200, 30, 30, 255})
			}
		}
	}
	q := spec.Quality
	if q == 0 {
		q = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type object struct {
	num  int
	body []byte
}

type builder struct {
	objects []object
	next    int
}

func (b *builder) alloc() int {
	b.next++
	return b.next
}

func (b *builder) add(num int, body string) {
	b.objects = append(b.objects, object{num, []byte(body)})
}

func (b *builder) addStream(num int, dictEntries string, data []byte) {
	var body bytes.Buffer
	fmt.Fprintf(&body, "<< %s /Length %d >>\nstream\n", dictEntries, len(data))
	body.Write(data)
	body.WriteString("\nendstream")
	b.objects = append(b.objects, object{num, body.Bytes()})
}

// PDF generates a complete document with the given pages.
func PDF(pages ...PageSpec) []byte {
	b := &builder{}
	catalog := b.alloc()
	pagesNode := b.alloc()

	var kids bytes.Buffer
	for _, p := range pages {
		pageNum := b.alloc()
		fmt.Fprintf(&kids, "%d 0 R ", pageNum)

		xobjects := ""
		if p.Image != nil {
			imgNum := b.alloc()
			data := JPEG(*p.Image)
			b.addStream(imgNum, fmt.Sprintf(
				"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode",
				p.Image.Width, p.Image.Height), data)
			xobjects += fmt.Sprintf("/Im0 %d 0 R ", imgNum)
		}
		if p.FormImage != nil {
			formNum := b.alloc()
			formImgNum := b.alloc()
			data := JPEG(*p.FormImage)
			b.addStream(formImgNum, fmt.Sprintf(
				"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode",
				p.FormImage.Width, p.FormImage.Height), data)
			formContent := "q 100 0 0 100 0 0 cm /Im0 Do Q"
			b.addStream(formNum, fmt.Sprintf(
				"/Type /XObject /Subtype /Form /BBox [0 0 100 100] /Resources << /XObject << /Im0 %d 0 R >> >>",
				formImgNum), []byte(formContent))
			xobjects += fmt.Sprintf("/Fm0 %d 0 R ", formNum)
		}

		content := p.RawContent
		if content == "" {
			var cs bytes.Buffer
			if p.Text != "" {
				fmt.Fprintf(&cs, "BT /F1 24 Tf 72 720 Td (%s) Tj ET\n", p.Text)
			}
			if p.Image != nil {
				cs.WriteString("q 200 0 0 200 72 400 cm /Im0 Do Q\n")
			}
			if p.FormImage != nil {
				cs.WriteString("q 1 0 0 1 72 200 cm /Fm0 Do Q\n")
			}
			content = cs.String()
		}
		contentNum := b.alloc()
		b.addStream(contentNum, "", []byte(content))

		if p.NoResources {
			b.add(pageNum, fmt.Sprintf(
				"<< /Type /Page /Parent %d 0 R /Contents %d 0 R >>",
				pagesNode, contentNum))
		} else {
			res := "/Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >>"
			if xobjects != "" {
				res += fmt.Sprintf(" /XObject << %s>>", xobjects)
			}
			b.add(pageNum, fmt.Sprintf(
				"<< /Type /Page /Parent %d 0 R /Resources << %s >> /Contents %d 0 R >>",
				pagesNode, res, contentNum))
		}
	}

	b.add(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesNode))
	b.add(pagesNode, fmt.Sprintf(
		"<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		bytes.TrimSpace(kids.Bytes()), len(pages)))

	return b.render()
}

func (b *builder) render() []byte {
	var out bytes.Buffer
	out.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make(map[int]int, len(b.objects))
	for num := 1; num <= b.next; num++ {
		for _, o := range b.objects {
			if o.num != num {
				continue
			}
			offsets[num] = out.Len()
			fmt.Fprintf(&out, "%d 0 obj\n", num)
			out.Write(o.body)
			out.WriteString("\nendobj\n")
		}
	}

	xrefOffset := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", b.next+1)
	out.WriteString("0000000000 65535 f \n")
	for num := 1; num <= b.next; num++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", b.next+1, xrefOffset)
	return out.Bytes()
}
