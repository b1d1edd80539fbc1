package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph bodies share a 45x45 viewBox. FILL and STROKE are substituted per side.
var glyphs = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 17 22 L 28 22 L 31 33 L 14 33 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 11 39 L 34 39 L 34 34 L 11 34 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Rook: `<path d="M 11 14 L 11 9 L 15 9 L 15 11 L 20 11 L 20 9 L 25 9 L 25 11 L 30 11 L 30 9 L 34 9 L 34 14 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 14 14 L 31 14 L 31 31 L 14 31 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 9 39 L 36 39 L 36 32 L 9 32 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M 22 10 C 32 11 36 19 35 36 L 15 36 C 15 29 20 26 20 22 L 12 25 C 9 24 9 20 11 18 L 19 11 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<circle cx="17" cy="16" r="1.5" fill="STROKE"/>
<path d="M 11 39 L 36 39 L 36 36 L 11 36 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 22.5 11 C 30 16 31 24 28 31 L 17 31 C 14 24 15 16 22.5 11 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 10 39 L 35 39 L 35 33 L 10 33 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Queen: `<path d="M 9 14 L 15 25 L 16 10 L 20.5 24 L 22.5 8 L 24.5 24 L 29 10 L 30 25 L 36 14 L 33 32 L 12 32 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 10 39 L 35 39 L 35 33 L 10 33 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.King: `<path d="M 21 5 L 24 5 L 24 8 L 27 8 L 27 11 L 24 11 L 24 15 L 21 15 L 21 11 L 18 11 L 18 8 L 21 8 Z" fill="FILL" stroke="STROKE" stroke-width="1"/>
<path d="M 22.5 16 C 34 16 38 22 33 32 L 12 32 C 7 22 11 16 22.5 16 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
<path d="M 10 39 L 35 39 L 35 33 L 10 33 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	body, ok := glyphs[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if piece.Color() == nchess.Black {
		fill, stroke = "#262626", "#e6e6e6"
	}
	body = strings.NewReplacer("FILL", fill, "STROKE", stroke).Replace(body)
	return []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` + body + `</svg>`), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
