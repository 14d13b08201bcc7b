package content

import "context"

// BuiltinProvider 内置记忆文本池
// 外部文本服务不可用时的兜底，保证任何环境都能开局
type BuiltinProvider struct{}

// NewBuiltinProvider 创建内置文本池提供者
func NewBuiltinProvider() *BuiltinProvider {
	return &BuiltinProvider{}
}

// GetPool 返回内置文本池
func (p *BuiltinProvider) GetPool(ctx context.Context) ([]string, error) {
	return builtinPool, nil
}

// builtinPool 内置记忆片段
var builtinPool = []string{
	"小学操场边那棵会掉果子的老槐树",
	"第一次骑自行车摔进花坛的下午",
	"外婆在厨房里煮的红糖姜茶",
	"高考前夜窗外一直亮着的路灯",
	"和同桌传过的最后一张纸条",
	"夏天傍晚天台上吹过的风",
	"爸爸肩膀上看过的那场花灯",
	"转学那天塞进书包的一把水果糖",
	"第一次在海边看见涨潮",
	"雨天教室里断断续续的广播体操音乐",
	"藏在床板下的那本漫画书",
	"冬天早自习呵出的白气",
	"毕业典礼上没敢说出口的告别",
	"巷子口修鞋匠的收音机",
	"妈妈织到一半就搁下的毛衣",
	"春游大巴上唱跑调的那首歌",
	"旧居阳台上养过的一缸金鱼",
	"第一次领工资请全家吃的晚饭",
	"深夜自习室里最后熄灭的那盏灯",
	"火车站月台上挥手的背影",
	"胡同里追着跑的那只橘猫",
	"生日蛋糕上多插的那根蜡烛",
	"体育课躲在器材室里看完的小说",
	"搬家时遗落在旧屋的玻璃弹珠",
	"停电夜里全家围着的那支蜡烛",
	"第一场雪里堆到一半塌掉的雪人",
	"祖父书房里常年不变的墨水味",
	"运动会接力赛掉棒后的掌声",
	"午后趴在课桌上做过的那个梦",
	"老式挂钟整点报时的声音",
	"庙会上捏糖人的老师傅",
	"放学路上分着吃的一包辣条",
	"露天电影散场后满地的瓜子壳",
	"军训时偷偷传阅的家书",
	"屋檐下躲雨时闻到的泥土味",
	"除夕夜阳台上看到的第一朵烟花",
	"医院走廊里攥紧的那张挂号单",
	"毕业照里笑得最大声的那个人",
	"旧手机里舍不得删的语音",
	"凌晨四点出门赶早市的豆浆香",
	"图书馆借书卡上陌生的名字",
	"台风天全家挤在一张床上听雨",
	"第一次独自远行时车窗外的麦田",
	"老家井水冰过的西瓜",
	"课本边角画了一学期的小人",
	"弄堂里此起彼伏的晚饭香",
	"演出谢幕时突然亮起的灯",
	"迷路那晚陌生人递来的一碗热汤",
	"晒谷场上追逐的蜻蜓",
	"收音机里没听完的评书",
	"期末考后撕碎又粘好的试卷",
	"站在新家门口回头望的那一眼",
}
