// Package boardimg renders a stored board position as a PNG.
package boardimg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-wager/internal/rules"
)

var ErrBadPosition = errors.New("boardimg: undecodable position")

const (
	squareSize   = 56
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	sideMargin   = 24
	headerHeight = 40
	footerHeight = 28
)

// Options decorate the rendered board.
type Options struct {
	Header string
	Footer string
	// Highlight is a coordinate move such as "e2e4"; empty or malformed values are ignored.
	Highlight string
	// Flip draws the board from black's side.
	Flip bool
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	textColor       = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// RenderPNG draws the position encoded in fen.
func RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	fenOpt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	board := nchess.NewGame(fenOpt).Position().Board()

	totalWidth := boardSize + sideMargin*2
	totalHeight := headerHeight + boardSize + footerHeight
	origin := originPoint()

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawSquares(img, origin, opts.Flip)
	if mv, err := rules.ParseMove(opts.Highlight); err == nil {
		for _, sq := range []string{mv.From, mv.To} {
			rect := squareRect(squareOf(sq), origin, opts.Flip)
			imagedraw.Draw(img, rect, image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if err := drawPieces(img, board, origin, opts.Flip); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin, opts.Flip)
	drawText(img, image.Rect(0, 0, totalWidth, headerHeight), opts.Header)
	drawText(img, image.Rect(0, totalHeight-footerHeight, totalWidth, totalHeight), opts.Footer)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func originPoint() image.Point { return image.Point{X: sideMargin, Y: headerHeight} }

func squareOf(s string) nchess.Square {
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1'))
}

func squareRect(sq nchess.Square, origin image.Point, flip bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, boardSquares*boardSquares)
	for r := 0; r < boardSquares; r++ {
		for f := 0; f < boardSquares; f++ {
			out = append(out, nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
		}
	}
	return out
}

func drawSquares(dst imagedraw.Image, origin image.Point, flip bool) {
	for _, sq := range allSquares() {
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, squareRect(sq, origin, flip), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point, flip bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		rect := squareRect(sq, origin, flip)
		imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawCoordinates(dst imagedraw.Image, origin image.Point, flip bool) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	for i := 0; i < boardSquares; i++ {
		file := nchess.File(i)
		rank := nchess.Rank(i)

		fileRect := squareRect(nchess.NewSquare(file, nchess.Rank1), origin, flip)
		drawCentered(drawer, file.String(), fileRect.Min.X+squareSize/2, origin.Y+boardSize+ascent+2)

		rankRect := squareRect(nchess.NewSquare(nchess.FileA, rank), origin, flip)
		drawCentered(drawer, rank.String(), sideMargin/2, rankRect.Min.Y+squareSize/2+ascent/2)
	}
}

func drawText(dst imagedraw.Image, rect image.Rectangle, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(textColor)}
	metrics := basicfont.Face7x13.Metrics()
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawCentered(drawer, truncate(drawer, text, rect.Dx()-16), rect.Min.X+rect.Dx()/2, baseline)
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func truncate(drawer *font.Drawer, text string, maxWidth int) string {
	if drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ""
}
