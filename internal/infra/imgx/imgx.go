package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
)

// NotImageError 表示下载到的内容不是可识别的图片（例如 CDN 返回了 HTML 错误页）。
type NotImageError struct {
	MIME string
}

func (e *NotImageError) Error() string {
	return fmt.Sprintf("不是可识别的图片（%s）", e.MIME)
}

func IsNotImage(err error) bool {
	var e *NotImageError
	return errors.As(err, &e)
}

// NormalizeJPEG 确保 poster 以 JPEG 字节落盘。
//
// 约束：
// - JPEG 原样返回（不重新编码，避免二次有损压缩）
// - PNG/WebP 解码后铺白底再编码为 JPEG（JPEG 没有 alpha 通道）
// - 其它内容返回 NotImageError
func NormalizeJPEG(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("图片为空")
	}

	mt := mimetype.Detect(b)
	var (
		img image.Image
		err error
	)
	switch {
	case mt.Is("image/jpeg"):
		return b, nil
	case mt.Is("image/png"):
		img, err = png.Decode(bytes.NewReader(b))
	case mt.Is("image/webp"):
		img, err = webp.Decode(bytes.NewReader(b))
	default:
		return nil, &NotImageError{MIME: mt.String()}
	}
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	bnd := img.Bounds()
	if bnd.Dx() <= 0 || bnd.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	dst := image.NewRGBA(image.Rect(0, 0, bnd.Dx(), bnd.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bnd.Min, draw.Over)

	var out bytes.Buffer
	// 质量：不需要太“讲究”，但要稳定可用；95 在体积与质量之间比较均衡。
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
