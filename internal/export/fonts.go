package export

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font/sfnt"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// cjkFontCandidates 各平台常见中日韩字体路径，按优先级排列
var cjkFontCandidates = []string{
	"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/truetype/noto/NotoSansSC-Regular.ttf",
	"/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc",
	"/usr/share/fonts/truetype/arphic/uming.ttc",
	"/System/Library/Fonts/PingFang.ttc",
	"/System/Library/Fonts/STHeiti Light.ttc",
	"C:\\Windows\\Fonts\\msyh.ttc",
	"C:\\Windows\\Fonts\\simhei.ttf",
	"C:\\Windows\\Fonts\\simsun.ttc",
}

// FindCJKFont 按 PDF_TRANSLATOR_FONT 环境变量与平台默认路径查找中日韩字体
func FindCJKFont() (string, error) {
	if p := os.Getenv("PDF_TRANSLATOR_FONT"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("PDF_TRANSLATOR_FONT 指向的字体不存在: %s", p)
	}
	for _, p := range cjkFontCandidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("未找到可用的中日韩字体，可通过 PDF_TRANSLATOR_FONT 指定")
}

// FontBaseName 字体文件名去扩展名，作为注册后的引用名
func FontBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CollectChars 收集文档全部译文与原文中出现的字符，用于子集化
func CollectChars(doc *document.Document) map[rune]struct{} {
	chars := make(map[rune]struct{})
	for _, b := range doc.AllBlocks() {
		for _, r := range b.Text {
			chars[r] = struct{}{}
		}
		for _, r := range b.Translation {
			chars[r] = struct{}{}
		}
	}
	// 基本 ASCII 常驻，避免后续小改动触发缺字
	for r := rune(0x20); r < 0x7f; r++ {
		chars[r] = struct{}{}
	}
	return chars
}

// SubsetFont 剥离未使用字形的轮廓数据并重建 glyf/loca，
// 保持字形编号与 cmap/hmtx 不变；产物经 sfnt 校验，
// 任何一步失败都返回原始字体数据
func SubsetFont(data []byte, chars map[rune]struct{}, logger *zap.Logger) []byte {
	if logger == nil {
		logger = zap.NewNop()
	}
	out, err := stripUnusedGlyphs(data, chars)
	if err != nil {
		logger.Warn("font subsetting failed, using full font", zap.Error(err))
		return data
	}
	if _, err := sfnt.Parse(out); err != nil {
		logger.Warn("subset font failed validation, using full font", zap.Error(err))
		return data
	}
	logger.Info("font subset built",
		zap.Int("originalBytes", len(data)), zap.Int("subsetBytes", len(out)))
	return out
}

type fontTable struct {
	tag      string
	checksum uint32
	offset   uint32
	length   uint32
}

// stripUnusedGlyphs 解析 TrueType 表目录，标记需保留的字形
// （含复合字形引用闭包），其余字形轮廓置空
func stripUnusedGlyphs(data []byte, chars map[rune]struct{}) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("字体数据过短")
	}
	if binary.BigEndian.Uint32(data) == 0x74746366 { // 'ttcf'
		return nil, fmt.Errorf("不支持对字体集合 TTC 子集化")
	}
	sfntVersion := binary.BigEndian.Uint32(data)
	if sfntVersion != 0x00010000 && sfntVersion != 0x74727565 {
		return nil, fmt.Errorf("非 TrueType 轮廓字体 (0x%08x)", sfntVersion)
	}

	numTables := int(binary.BigEndian.Uint16(data[4:]))
	tables := make(map[string]fontTable, numTables)
	order := make([]fontTable, 0, numTables)
	for i := 0; i < numTables; i++ {
		rec := 12 + i*16
		if rec+16 > len(data) {
			return nil, fmt.Errorf("表目录越界")
		}
		t := fontTable{
			tag:      string(data[rec : rec+4]),
			checksum: binary.BigEndian.Uint32(data[rec+4:]),
			offset:   binary.BigEndian.Uint32(data[rec+8:]),
			length:   binary.BigEndian.Uint32(data[rec+12:]),
		}
		if int(t.offset)+int(t.length) > len(data) {
			return nil, fmt.Errorf("表 %s 越界", t.tag)
		}
		tables[t.tag] = t
		order = append(order, t)
	}
	for _, tag := range []string{"glyf", "loca", "head", "maxp", "cmap"} {
		if _, ok := tables[tag]; !ok {
			return nil, fmt.Errorf("缺少 %s 表", tag)
		}
	}

	head := data[tables["head"].offset : tables["head"].offset+tables["head"].length]
	if len(head) < 54 {
		return nil, fmt.Errorf("head 表过短")
	}
	longLoca := binary.BigEndian.Uint16(head[50:]) == 1

	maxp := data[tables["maxp"].offset : tables["maxp"].offset+tables["maxp"].length]
	if len(maxp) < 6 {
		return nil, fmt.Errorf("maxp 表过短")
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxp[4:]))

	keep, err := usedGlyphSet(data, tables, chars, numGlyphs)
	if err != nil {
		return nil, err
	}

	loca, err := parseLoca(data, tables["loca"], numGlyphs, longLoca)
	if err != nil {
		return nil, err
	}
	glyf := data[tables["glyf"].offset : tables["glyf"].offset+tables["glyf"].length]

	// 复合字形引用闭包
	if err := closeComposites(glyf, loca, keep, numGlyphs); err != nil {
		return nil, err
	}

	newGlyf, newLoca := rebuildGlyf(glyf, loca, keep, numGlyphs)
	return rebuildFont(data, order, tables, newGlyf, encodeLoca(newLoca, longLoca))
}

// usedGlyphSet cmap format 4 与 format 12 子表映射需要的字符
func usedGlyphSet(data []byte, tables map[string]fontTable, chars map[rune]struct{}, numGlyphs int) (map[int]bool, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("cmap 解析失败: %w", err)
	}
	var buf sfnt.Buffer
	keep := map[int]bool{0: true} // .notdef 永远保留
	for r := range chars {
		gi, err := f.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			continue
		}
		if int(gi) < numGlyphs {
			keep[int(gi)] = true
		}
	}
	return keep, nil
}

func parseLoca(data []byte, t fontTable, numGlyphs int, long bool) ([]uint32, error) {
	raw := data[t.offset : t.offset+t.length]
	n := numGlyphs + 1
	loca := make([]uint32, n)
	if long {
		if len(raw) < n*4 {
			return nil, fmt.Errorf("loca 表过短")
		}
		for i := 0; i < n; i++ {
			loca[i] = binary.BigEndian.Uint32(raw[i*4:])
		}
	} else {
		if len(raw) < n*2 {
			return nil, fmt.Errorf("loca 表过短")
		}
		for i := 0; i < n; i++ {
			loca[i] = uint32(binary.BigEndian.Uint16(raw[i*2:])) * 2
		}
	}
	return loca, nil
}

// closeComposites 保留的复合字形引用到的分量字形也要保留，迭代到收敛
func closeComposites(glyf []byte, loca []uint32, keep map[int]bool, numGlyphs int) error {
	for changed := true; changed; {
		changed = false
		for gi := range keep {
			start, end := loca[gi], loca[gi+1]
			if start >= end || int(end) > len(glyf) {
				continue
			}
			g := glyf[start:end]
			if len(g) < 10 || int16(binary.BigEndian.Uint16(g)) >= 0 {
				continue // 简单字形
			}
			off := 10
			for {
				if off+4 > len(g) {
					return fmt.Errorf("复合字形数据越界")
				}
				flags := binary.BigEndian.Uint16(g[off:])
				comp := int(binary.BigEndian.Uint16(g[off+2:]))
				if comp < numGlyphs && !keep[comp] {
					keep[comp] = true
					changed = true
				}
				off += 4
				if flags&0x0001 != 0 { // ARG_1_AND_2_ARE_WORDS
					off += 4
				} else {
					off += 2
				}
				if flags&0x0008 != 0 { // WE_HAVE_A_SCALE
					off += 2
				} else if flags&0x0040 != 0 { // X_AND_Y_SCALE
					off += 4
				} else if flags&0x0080 != 0 { // TWO_BY_TWO
					off += 8
				}
				if flags&0x0020 == 0 { // MORE_COMPONENTS
					break
				}
			}
		}
	}
	return nil
}

// rebuildGlyf 保留字形拷贝轮廓，未保留字形长度为零
func rebuildGlyf(glyf []byte, loca []uint32, keep map[int]bool, numGlyphs int) ([]byte, []uint32) {
	var out []byte
	newLoca := make([]uint32, numGlyphs+1)
	for gi := 0; gi < numGlyphs; gi++ {
		newLoca[gi] = uint32(len(out))
		if !keep[gi] {
			continue
		}
		start, end := loca[gi], loca[gi+1]
		if start >= end || int(end) > len(glyf) {
			continue
		}
		out = append(out, glyf[start:end]...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
	}
	newLoca[numGlyphs] = uint32(len(out))
	return out, newLoca
}

func encodeLoca(loca []uint32, long bool) []byte {
	if long {
		out := make([]byte, len(loca)*4)
		for i, v := range loca {
			binary.BigEndian.PutUint32(out[i*4:], v)
		}
		return out
	}
	out := make([]byte, len(loca)*2)
	for i, v := range loca {
		binary.BigEndian.PutUint16(out[i*2:], uint16(v/2))
	}
	return out
}

// rebuildFont 以新的 glyf/loca 重组整个字体文件并修正校验和
func rebuildFont(data []byte, order []fontTable, tables map[string]fontTable, newGlyf, newLoca []byte) ([]byte, error) {
	replaced := map[string][]byte{"glyf": newGlyf, "loca": newLoca}

	numTables := len(order)
	dirSize := 12 + numTables*16
	out := make([]byte, dirSize)
	copy(out, data[:dirSize])

	type placed struct {
		rec    int
		body   []byte
		offset uint32
	}
	var all []placed
	for i, t := range order {
		body := data[t.offset : t.offset+t.length]
		if r, ok := replaced[t.tag]; ok {
			body = r
		}
		all = append(all, placed{rec: 12 + i*16, body: body})
	}
	for i := range all {
		all[i].offset = uint32(len(out))
		out = append(out, all[i].body...)
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
	}
	for i := range order {
		p := all[i]
		binary.BigEndian.PutUint32(out[p.rec+4:], tableChecksum(p.body))
		binary.BigEndian.PutUint32(out[p.rec+8:], p.offset)
		binary.BigEndian.PutUint32(out[p.rec+12:], uint32(len(p.body)))
	}

	// head.checkSumAdjustment = 0xB1B0AFBA - 整文件校验和
	headT, ok := tables["head"]
	if !ok {
		return nil, fmt.Errorf("缺少 head 表")
	}
	for i, t := range order {
		if t.tag == "head" && int(headT.length) >= 12 {
			adj := all[i].offset + 8
			binary.BigEndian.PutUint32(out[adj:], 0)
			total := tableChecksum(out)
			binary.BigEndian.PutUint32(out[adj:], 0xB1B0AFBA-total)
			break
		}
	}
	return out, nil
}

func tableChecksum(b []byte) uint32 {
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		var v uint32
		for j := 0; j < 4; j++ {
			v <<= 8
			if i+j < len(b) {
				v |= uint32(b[i+j])
			}
		}
		sum += v
	}
	return sum
}
