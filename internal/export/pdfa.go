package export

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// xmpPDFA2B 声明 PDF/A-2B 一致性的 XMP 元数据包
const xmpPDFA2B = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about="" xmlns:pdfaid="http://www.aiim.org/pdfa/ns/id/">
   <pdfaid:part>2</pdfaid:part>
   <pdfaid:conformance>B</pdfaid:conformance>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// stampPDFA2B 向文档目录写入 PDF/A-2B 标识与 sRGB 输出意图
func stampPDFA2B(data []byte, conf *model.Configuration) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("读取 PDF 上下文失败: %w", err)
	}
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("获取文档目录失败: %w", err)
	}

	intent := types.Dict{
		"Type":                      types.Name("OutputIntent"),
		"S":                         types.Name("GTS_PDFA1"),
		"OutputConditionIdentifier": types.StringLiteral("sRGB IEC61966-2.1"),
		"Info":                      types.StringLiteral("sRGB IEC61966-2.1"),
		"RegistryName":              types.StringLiteral("http://www.color.org"),
	}
	rootDict["OutputIntents"] = types.Array{intent}

	xmp := []byte(xmpPDFA2B)
	sd := types.StreamDict{
		Dict: types.Dict{
			"Type":    types.Name("Metadata"),
			"Subtype": types.Name("XML"),
			"Length":  types.Integer(len(xmp)),
		},
		Content: xmp,
		Raw:     xmp,
	}
	indRef, err := ctx.IndRefForNewObject(sd)
	if err != nil {
		return nil, fmt.Errorf("写入元数据流失败: %w", err)
	}
	rootDict["Metadata"] = *indRef

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("写出 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}
